package consultation

import "context"

type ConsultationRepository interface {
	Create(ctx context.Context, c *Consultation) error
	GetByID(ctx context.Context, id int64) (*Consultation, error)
	Update(ctx context.Context, c *Consultation) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter Filter, limit, offset int) ([]*Consultation, int, error)
}
