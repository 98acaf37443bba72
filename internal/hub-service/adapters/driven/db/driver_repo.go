package db

import (
	"context"
	"errors"
	"fmt"

	"fleet-dash/internal/hub-service/core/domain/model"
	"fleet-dash/internal/hub-service/core/myerrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const driverColumns = `driver_id, driver_name, mobile_number, rc_book_number, car_model, is_active,
	latitude, longitude, location_seq, created_at, updated_at`

type DriverRepository struct {
	db *DataBase
}

func NewDriverRepository(db *DataBase) *DriverRepository {
	return &DriverRepository{db: db}
}

func (dr *DriverRepository) Create(ctx context.Context, d model.Driver) (model.Driver, error) {
	query := `
		INSERT INTO drivers(driver_id, driver_name, mobile_number, password_hash, rc_book_number, car_model, is_active, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + driverColumns

	row := dr.db.Pool().QueryRow(ctx, query,
		d.ID, d.DriverName, d.MobileNumber, d.PasswordHash, d.RcBookNumber, d.CarModel, d.IsActive, d.Latitude, d.Longitude)
	created, err := scanDriver(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return model.Driver{}, myerrors.ErrMobileRegistered
		}
		return model.Driver{}, fmt.Errorf("insert driver: %w", err)
	}
	return created, nil
}

func (dr *DriverRepository) List(ctx context.Context) ([]model.Driver, error) {
	rows, err := dr.db.Pool().Query(ctx, `SELECT `+driverColumns+` FROM drivers ORDER BY created_at, driver_id`)
	if err != nil {
		return nil, fmt.Errorf("select drivers: %w", err)
	}
	defer rows.Close()

	var drivers []model.Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, fmt.Errorf("scan driver: %w", err)
		}
		drivers = append(drivers, d)
	}
	return drivers, rows.Err()
}

func (dr *DriverRepository) Delete(ctx context.Context, id string) error {
	tag, err := dr.db.Pool().Exec(ctx, `DELETE FROM drivers WHERE driver_id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete driver: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return myerrors.ErrDriverNotFound
	}
	return nil
}

func (dr *DriverRepository) UpdateLocation(ctx context.Context, id string, lat, lon float64) (model.Driver, error) {
	query := `
		UPDATE drivers
		SET latitude = $2,
			longitude = $3,
			location_seq = location_seq + 1,
			updated_at = NOW()
		WHERE driver_id = $1
		RETURNING ` + driverColumns

	d, err := scanDriver(dr.db.Pool().QueryRow(ctx, query, id, lat, lon))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Driver{}, myerrors.ErrDriverNotFound
	}
	if err != nil {
		return model.Driver{}, fmt.Errorf("update location: %w", err)
	}
	return d, nil
}

func (dr *DriverRepository) PasswordHash(ctx context.Context, mobileNumber string) (string, []byte, error) {
	var id string
	var hash []byte
	err := dr.db.Pool().QueryRow(ctx,
		`SELECT driver_id, password_hash FROM drivers WHERE mobile_number = $1`, mobileNumber,
	).Scan(&id, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil, myerrors.ErrDriverNotFound
	}
	if err != nil {
		return "", nil, fmt.Errorf("select password: %w", err)
	}
	return id, hash, nil
}

func scanDriver(row pgx.Row) (model.Driver, error) {
	var d model.Driver
	var seq int64
	err := row.Scan(
		&d.ID,
		&d.DriverName,
		&d.MobileNumber,
		&d.RcBookNumber,
		&d.CarModel,
		&d.IsActive,
		&d.Latitude,
		&d.Longitude,
		&seq,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	d.LocationSeq = uint64(seq)
	return d, err
}
