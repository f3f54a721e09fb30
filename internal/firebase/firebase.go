package firebase

import (
	"context"

	"property-registry/backend/internal/config"

	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
)

// clientOptions prefers FIREBASE_SERVICE_ACCOUNT_JSON (raw json content),
// then GOOGLE_APPLICATION_CREDENTIALS (service account json file path).
// With neither, Application Default Credentials are used.
func clientOptions(cfg config.Firebase) []option.ClientOption {
	opts := []option.ClientOption{}
	switch {
	case cfg.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	return opts
}

func NewApp(ctx context.Context, cfg config.Firebase) (*firebase.App, error) {
	appCfg := &firebase.Config{
		ProjectID:     cfg.ProjectID,
		StorageBucket: cfg.StorageBucket,
	}
	return firebase.NewApp(ctx, appCfg, clientOptions(cfg)...)
}
