package property

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const DefaultCollection = "properties"

// Repo stores properties in one Firestore collection.
type Repo struct {
	fs         *firestore.Client
	collection string
}

func NewRepo(fs *firestore.Client, collection string) *Repo {
	if collection == "" {
		collection = DefaultCollection
	}
	return &Repo{fs: fs, collection: collection}
}

func (r *Repo) col() *firestore.CollectionRef {
	return r.fs.Collection(r.collection)
}

func (r *Repo) Create(ctx context.Context, fields map[string]any) (string, error) {
	doc := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		doc[k] = v
	}
	doc[FieldCreatedAt] = firestore.ServerTimestamp
	doc[FieldUpdatedAt] = firestore.ServerTimestamp

	ref := r.col().NewDoc()
	if _, err := ref.Create(ctx, doc); err != nil {
		return "", classify(err)
	}
	return ref.ID, nil
}

func (r *Repo) List(ctx context.Context) ([]Property, error) {
	it := r.col().Documents(ctx)
	defer it.Stop()
	return decodeAll(it)
}

func (r *Repo) Update(ctx context.Context, id string, fields map[string]any) error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	updates := make([]firestore.Update, 0, len(keys)+1)
	for _, k := range keys {
		updates = append(updates, firestore.Update{Path: k, Value: fields[k]})
	}
	updates = append(updates, firestore.Update{Path: FieldUpdatedAt, Value: firestore.ServerTimestamp})

	// Update fails with NotFound when the document does not exist.
	_, err := r.col().Doc(id).Update(ctx, updates)
	return classify(err)
}

func (r *Repo) Delete(ctx context.Context, id string) error {
	_, err := r.col().Doc(id).Delete(ctx)
	return classify(err)
}

func (r *Repo) Watch(ctx context.Context, fn func([]Property)) error {
	it := r.col().Snapshots(ctx)
	defer it.Stop()

	for {
		snap, err := it.Next()
		if err != nil {
			if ctx.Err() != nil || status.Code(err) == codes.Canceled || errors.Is(err, iterator.Done) {
				return nil
			}
			return classify(err)
		}
		props, err := decodeAll(snap.Documents)
		if err != nil {
			return err
		}
		fn(props)
	}
}

// decodeAll skips documents that cannot be read as a property, so one
// foreign record does not hide the rest of the collection.
func decodeAll(it *firestore.DocumentIterator) ([]Property, error) {
	out := []Property{}
	for {
		doc, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, classify(err)
		}
		p, err := decodeDoc(doc.Ref.ID, doc.Data())
		if err != nil {
			log.Printf("[properties] skipping document %s: %v", doc.Ref.ID, err)
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// decodeDoc reads a document written by any client. Scalar values are
// rendered as text; maps, arrays and other composite values are rejected.
func decodeDoc(id string, data map[string]any) (Property, error) {
	p := Property{ID: id}
	fields := []struct {
		name string
		dst  *string
	}{
		{FieldPlotNumber, &p.PlotNumber},
		{FieldDistrict, &p.District},
		{FieldBlock, &p.Block},
		{FieldOwnerInfo, &p.OwnerInfo},
	}
	for _, f := range fields {
		s, err := asText(data[f.name])
		if err != nil {
			return Property{}, fmt.Errorf("field %s: %w", f.name, err)
		}
		*f.dst = s
	}
	p.CreatedAt = asTime(data[FieldCreatedAt])
	p.UpdatedAt = asTime(data[FieldUpdatedAt])
	return p, nil
}

func asText(v any) (string, error) {
	switch v := v.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case int:
		return strconv.Itoa(v), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return "", fmt.Errorf("unsupported value of type %T", v)
	}
}

// asTime accepts only timestamps; anything else reads as the zero time.
func asTime(v any) time.Time {
	if t, ok := v.(time.Time); ok {
		return t
	}
	return time.Time{}
}
