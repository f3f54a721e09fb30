package firebase

import (
	"context"
	"fmt"
	"log"

	"property-registry/backend/internal/config"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	identitytoolkit "google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"
)

// Services bundles the Firebase clients. It is built once and only read
// afterwards.
type Services struct {
	App       *firebase.App
	Auth      *auth.Client
	Firestore *firestore.Client
	Identity  *identitytoolkit.Service

	ProjectID string
}

func NewServices(ctx context.Context, cfg config.Firebase) (*Services, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("missing FIREBASE_PROJECT_ID or GOOGLE_CLOUD_PROJECT")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("missing FIREBASE_API_KEY")
	}

	app, err := NewApp(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("firebase app init failed: %w", err)
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase auth client init failed: %w", err)
	}

	fs, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("firestore init failed: %w", err)
	}

	// Password sign-in is a client API: it takes the web API key, not the
	// service account.
	idOpts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.AuthEmulatorHost != "" {
		idOpts = append(idOpts,
			option.WithEndpoint("http://"+cfg.AuthEmulatorHost+"/identitytoolkit.googleapis.com/identitytoolkit/v3/relyingparty/"),
		)
	}
	identity, err := identitytoolkit.NewService(ctx, idOpts...)
	if err != nil {
		_ = fs.Close()
		return nil, fmt.Errorf("identity toolkit init failed: %w", err)
	}

	if cfg.FirestoreEmulatorHost != "" {
		log.Printf("firestore emulator at %s", cfg.FirestoreEmulatorHost)
	}
	log.Printf("firebase initialized (project=%s)", cfg.ProjectID)

	return &Services{
		App:       app,
		Auth:      authClient,
		Firestore: fs,
		Identity:  identity,
		ProjectID: cfg.ProjectID,
	}, nil
}

func (s *Services) Close() {
	if s == nil || s.Firestore == nil {
		return
	}
	_ = s.Firestore.Close()
}
