package doctor

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/hackgods/appointment-lifecycle/internal/db"
)

type PgRepository struct {
	db db.DBTX
}

func NewPgRepository(conn db.DBTX) *PgRepository {
	return &PgRepository{db: conn}
}

const doctorColumns = `id, name, avatar, specialization, online_fee, clinic_fee, auto_accept, created_at, updated_at`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Avatar,
		&d.Specialization,
		&d.OnlineFee,
		&d.ClinicFee,
		&d.AutoAccept,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (r *PgRepository) GetDoctor(ctx context.Context, id string) (*Doctor, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+doctorColumns+`
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) ListDoctors(ctx context.Context) ([]Doctor, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+doctorColumns+`
		FROM doctors
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	defer rows.Close()

	var result []Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// UpsertDoctor writes a profile. Used by seeding; the scheduling core only
// reads doctors.
func (r *PgRepository) UpsertDoctor(ctx context.Context, d Doctor) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO doctors (id, name, avatar, specialization, online_fee, clinic_fee, auto_accept, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    avatar = EXCLUDED.avatar,
		    specialization = EXCLUDED.specialization,
		    online_fee = EXCLUDED.online_fee,
		    clinic_fee = EXCLUDED.clinic_fee,
		    auto_accept = EXCLUDED.auto_accept,
		    updated_at = now()
	`, d.ID, d.Name, d.Avatar, d.Specialization, d.OnlineFee, d.ClinicFee, d.AutoAccept)
	if err != nil {
		return fmt.Errorf("upsert doctor %s: %w", d.ID, err)
	}
	return nil
}
