package scheduling

import "context"

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id int64) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter Filter, limit, offset int) ([]*Appointment, int, error)
}
