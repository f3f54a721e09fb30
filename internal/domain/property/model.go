package property

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const maxFieldLen = 200

// Firestore field names.
const (
	FieldPlotNumber = "plotNumber"
	FieldDistrict   = "district"
	FieldBlock      = "block"
	FieldOwnerInfo  = "ownerInfo"
	FieldCreatedAt  = "createdAt"
	FieldUpdatedAt  = "updatedAt"
)

type Property struct {
	ID         string    `firestore:"-" json:"id"`
	PlotNumber string    `firestore:"plotNumber" json:"plotNumber"`
	District   string    `firestore:"district,omitempty" json:"district,omitempty"`
	Block      string    `firestore:"block,omitempty" json:"block,omitempty"`
	OwnerInfo  string    `firestore:"ownerInfo,omitempty" json:"ownerInfo,omitempty"`
	CreatedAt  time.Time `firestore:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time `firestore:"updatedAt" json:"updatedAt"`
}

// Store is the document store behind the service. Create assigns the ID and
// both timestamps; Update merges fields and refreshes only updatedAt.
type Store interface {
	Create(ctx context.Context, fields map[string]any) (string, error)
	List(ctx context.Context) ([]Property, error)
	Update(ctx context.Context, id string, fields map[string]any) error
	Delete(ctx context.Context, id string) error
	// Watch calls fn with the full collection on every change, starting with
	// the current contents, until ctx is done.
	Watch(ctx context.Context, fn func([]Property)) error
}

type CreatePropertyInput struct {
	PlotNumber string `json:"plotNumber"`
	District   string `json:"district,omitempty"`
	Block      string `json:"block,omitempty"`
	OwnerInfo  string `json:"ownerInfo,omitempty"`
}

func (in *CreatePropertyInput) Trim() {
	in.PlotNumber = strings.TrimSpace(in.PlotNumber)
	in.District = strings.TrimSpace(in.District)
	in.Block = strings.TrimSpace(in.Block)
	in.OwnerInfo = strings.TrimSpace(in.OwnerInfo)
}

func (in CreatePropertyInput) Validate() error {
	if in.PlotNumber == "" {
		return fmt.Errorf("%w: plotNumber is required", ErrBadRequest)
	}
	return checkLengths(map[string]string{
		FieldPlotNumber: in.PlotNumber,
		FieldDistrict:   in.District,
		FieldBlock:      in.Block,
		FieldOwnerInfo:  in.OwnerInfo,
	})
}

func (in CreatePropertyInput) Fields() map[string]any {
	out := map[string]any{FieldPlotNumber: in.PlotNumber}
	if in.District != "" {
		out[FieldDistrict] = in.District
	}
	if in.Block != "" {
		out[FieldBlock] = in.Block
	}
	if in.OwnerInfo != "" {
		out[FieldOwnerInfo] = in.OwnerInfo
	}
	return out
}

// UpdatePropertyInput is a partial record; nil fields are left untouched.
type UpdatePropertyInput struct {
	PlotNumber *string `json:"plotNumber,omitempty"`
	District   *string `json:"district,omitempty"`
	Block      *string `json:"block,omitempty"`
	OwnerInfo  *string `json:"ownerInfo,omitempty"`
}

func (in *UpdatePropertyInput) Trim() {
	for _, p := range []*string{in.PlotNumber, in.District, in.Block, in.OwnerInfo} {
		if p != nil {
			*p = strings.TrimSpace(*p)
		}
	}
}

func (in UpdatePropertyInput) Validate() error {
	fields := in.Fields()
	if len(fields) == 0 {
		return fmt.Errorf("%w: nothing to update", ErrBadRequest)
	}
	if in.PlotNumber != nil && *in.PlotNumber == "" {
		return fmt.Errorf("%w: plotNumber cannot be empty", ErrBadRequest)
	}
	values := make(map[string]string, len(fields))
	for k, v := range fields {
		values[k] = v.(string)
	}
	return checkLengths(values)
}

func (in UpdatePropertyInput) Fields() map[string]any {
	out := map[string]any{}
	if in.PlotNumber != nil {
		out[FieldPlotNumber] = *in.PlotNumber
	}
	if in.District != nil {
		out[FieldDistrict] = *in.District
	}
	if in.Block != nil {
		out[FieldBlock] = *in.Block
	}
	if in.OwnerInfo != nil {
		out[FieldOwnerInfo] = *in.OwnerInfo
	}
	return out
}

func checkLengths(values map[string]string) error {
	for name, v := range values {
		if utf8.RuneCountInString(v) > maxFieldLen {
			return fmt.Errorf("%w: %s must be at most %d characters", ErrBadRequest, name, maxFieldLen)
		}
	}
	return nil
}
