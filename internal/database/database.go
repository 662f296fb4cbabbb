package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	apperrors "wabroadcast/internal/errors"
	"wabroadcast/internal/migrations"
	"wabroadcast/internal/models"
	"wabroadcast/internal/security"

	_ "github.com/mattn/go-sqlite3"
)

// Database is the record gateway both state machines read and write
// through. It performs no retries: retry policy belongs to the caller.
type Database struct {
	db        *sql.DB
	encryptor *encryptor
}

func New(dbPath string) (*Database, error) {
	if len(dbPath) == 0 || dbPath[0] == '\x00' {
		return nil, fmt.Errorf("invalid database path")
	}

	if err := security.ValidateFilePath(dbPath); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database file: %w", err)
	}

	// WAL plus a busy timeout so concurrent conditional writes queue
	// instead of failing with SQLITE_BUSY.
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(migrations.GetInitialSchema()); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	encryptor, err := NewEncryptor()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize encryptor: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	return &Database{db: db, encryptor: encryptor}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// Device operations

func (d *Database) CreateDevice(ctx context.Context, device *models.Device) error {
	credential, err := d.encryptOptional(device.PairingCredential)
	if err != nil {
		return apperrors.NewStoreError("create device", err)
	}
	phone, err := d.encryptOptional(device.PhoneNumber)
	if err != nil {
		return apperrors.NewStoreError("create device", err)
	}

	query := `
		INSERT INTO devices (
			id, user_id, name, connection_state,
			pairing_credential, credential_issued_at, phone_number, last_seen_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = d.db.ExecContext(ctx, query,
		device.ID,
		device.UserID,
		device.Name,
		device.ConnectionState,
		credential,
		device.CredentialIssuedAt,
		phone,
		device.LastSeenAt,
	)
	if err != nil {
		return apperrors.NewStoreError("create device", err)
	}

	return nil
}

const deviceColumns = `
	id, user_id, name, connection_state,
	pairing_credential, credential_issued_at, phone_number, last_seen_at,
	created_at, updated_at
`

// GetDevice returns the device or (nil, nil) when the id is unknown.
func (d *Database) GetDevice(ctx context.Context, id string) (*models.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE id = ?`
	device, err := d.scanDevice(d.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewStoreError("get device", err)
	}
	return device, nil
}

func (d *Database) ListDevices(ctx context.Context, userID string) ([]*models.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE user_id = ? ORDER BY created_at`
	rows, err := d.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, apperrors.NewStoreError("list devices", err)
	}
	defer rows.Close()

	var devices []*models.Device
	for rows.Next() {
		device, err := d.scanDevice(rows)
		if err != nil {
			return nil, apperrors.NewStoreError("list devices", err)
		}
		devices = append(devices, device)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreError("list devices", err)
	}
	return devices, nil
}

// DeviceTransition is the full projection of a device's mutable state. The
// state machine computes it; the gateway writes every column so the
// credential/phone invariants cannot drift between transitions.
type DeviceTransition struct {
	State              models.ConnectionState
	PairingCredential  *string
	CredentialIssuedAt *time.Time
	PhoneNumber        *string
	LastSeenAt         *time.Time
}

// UpdateDeviceState commits a transition. With expected supplied the write
// is conditional on the currently persisted state and loses cleanly to a
// concurrent writer (Conflict); with expected nil it overwrites.
func (d *Database) UpdateDeviceState(ctx context.Context, id string, expected *models.ConnectionState, t DeviceTransition) (*models.Device, error) {
	credential, err := d.encryptOptional(t.PairingCredential)
	if err != nil {
		return nil, apperrors.NewStoreError("update device", err)
	}
	phone, err := d.encryptOptional(t.PhoneNumber)
	if err != nil {
		return nil, apperrors.NewStoreError("update device", err)
	}

	query := `
		UPDATE devices
		SET connection_state = ?, pairing_credential = ?, credential_issued_at = ?,
		    phone_number = ?, last_seen_at = ?
		WHERE id = ?
	`
	args := []interface{}{t.State, credential, t.CredentialIssuedAt, phone, t.LastSeenAt, id}
	if expected != nil {
		query += ` AND connection_state = ?`
		args = append(args, *expected)
	}

	result, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStoreError("update device", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, apperrors.NewStoreError("update device", err)
	}
	if rows == 0 {
		current, getErr := d.GetDevice(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		if current == nil {
			return nil, apperrors.NewNotFoundError("device", id)
		}
		return nil, apperrors.NewConflictError("device", id).
			WithContext("current_state", string(current.ConnectionState))
	}

	return d.GetDevice(ctx, id)
}

// TouchDeviceLastSeen refreshes the liveness timestamp without touching the
// rest of the device row.
func (d *Database) TouchDeviceLastSeen(ctx context.Context, id string, seenAt time.Time) error {
	result, err := d.db.ExecContext(ctx, `UPDATE devices SET last_seen_at = ? WHERE id = ?`, seenAt, id)
	if err != nil {
		return apperrors.NewStoreError("touch device", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewStoreError("touch device", err)
	}
	if rows == 0 {
		return apperrors.NewNotFoundError("device", id)
	}
	return nil
}

// DeleteDevice hard-removes the device. Historical messages referencing it
// are left untouched.
func (d *Database) DeleteDevice(ctx context.Context, id string) error {
	result, err := d.db.ExecContext(ctx, `DELETE FROM devices WHERE id = ?`, id)
	if err != nil {
		return apperrors.NewStoreError("delete device", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewStoreError("delete device", err)
	}
	if rows == 0 {
		return apperrors.NewNotFoundError("device", id)
	}
	return nil
}

type deviceScanner interface {
	Scan(dest ...interface{}) error
}

func (d *Database) scanDevice(row deviceScanner) (*models.Device, error) {
	device := &models.Device{}
	var credential, phone *string

	err := row.Scan(
		&device.ID,
		&device.UserID,
		&device.Name,
		&device.ConnectionState,
		&credential,
		&device.CredentialIssuedAt,
		&phone,
		&device.LastSeenAt,
		&device.CreatedAt,
		&device.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	device.PairingCredential, err = d.decryptOptional(credential)
	if err != nil {
		return nil, err
	}
	device.PhoneNumber, err = d.decryptOptional(phone)
	if err != nil {
		return nil, err
	}

	return device, nil
}

// Message operations

func (d *Database) CreateMessage(ctx context.Context, msg *models.Message) error {
	groups, err := json.Marshal(msg.TargetGroups)
	if err != nil {
		return apperrors.NewStoreError("create message", err)
	}

	var attachmentURL, attachmentName *string
	if msg.Attachment != nil {
		attachmentURL = &msg.Attachment.URL
		if msg.Attachment.Name != "" {
			attachmentName = &msg.Attachment.Name
		}
	}

	query := `
		INSERT INTO messages (
			id, device_id, user_id, body, attachment_url, attachment_name,
			target_groups, delivery_state, scheduled_for, sent_at, error_detail
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = d.db.ExecContext(ctx, query,
		msg.ID,
		msg.DeviceID,
		msg.UserID,
		msg.Body,
		attachmentURL,
		attachmentName,
		string(groups),
		msg.DeliveryState,
		msg.ScheduledFor,
		msg.SentAt,
		msg.ErrorDetail,
	)
	if err != nil {
		return apperrors.NewStoreError("create message", err)
	}

	return nil
}

const messageColumns = `
	id, device_id, user_id, body, attachment_url, attachment_name,
	target_groups, delivery_state, scheduled_for, sent_at, error_detail,
	created_at, updated_at
`

// GetMessage returns the message or (nil, nil) when the id is unknown.
func (d *Database) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = ?`
	msg, err := scanMessage(d.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewStoreError("get message", err)
	}
	return msg, nil
}

func (d *Database) ListMessages(ctx context.Context, filter models.MessageFilter) ([]*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE 1=1`
	var args []interface{}

	if filter.UserID != "" {
		query += ` AND user_id = ?`
		args = append(args, filter.UserID)
	}
	if filter.DeviceID != "" {
		query += ` AND device_id = ?`
		args = append(args, filter.DeviceID)
	}
	if filter.State != "" {
		query += ` AND delivery_state = ?`
		args = append(args, filter.State)
	}
	if filter.DueBy != nil {
		query += ` AND scheduled_for IS NOT NULL AND scheduled_for <= ?`
		args = append(args, *filter.DueBy)
	}

	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStoreError("list messages", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, apperrors.NewStoreError("list messages", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreError("list messages", err)
	}
	return messages, nil
}

// MessageTransition is the terminal-evidence projection committed with a
// delivery state change.
type MessageTransition struct {
	State       models.DeliveryState
	SentAt      *time.Time
	ErrorDetail *string
}

// UpdateMessageState commits a transition conditional on the currently
// persisted state. Every message transition is conditional: the losing
// side of a race gets Conflict and must reload. scheduled_for is never
// rewritten, so a due message keeps its original schedule for display.
func (d *Database) UpdateMessageState(ctx context.Context, id string, expected models.DeliveryState, t MessageTransition) (*models.Message, error) {
	query := `
		UPDATE messages
		SET delivery_state = ?, sent_at = ?, error_detail = ?
		WHERE id = ? AND delivery_state = ?
	`

	result, err := d.db.ExecContext(ctx, query, t.State, t.SentAt, t.ErrorDetail, id, expected)
	if err != nil {
		return nil, apperrors.NewStoreError("update message", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, apperrors.NewStoreError("update message", err)
	}
	if rows == 0 {
		current, getErr := d.GetMessage(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		if current == nil {
			return nil, apperrors.NewNotFoundError("message", id)
		}
		return nil, apperrors.NewConflictError("message", id).
			WithContext("current_state", string(current.DeliveryState))
	}

	return d.GetMessage(ctx, id)
}

// CountMessages reports the total number of message rows.
func (d *Database) CountMessages(ctx context.Context) (int, error) {
	var count int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count); err != nil {
		return 0, apperrors.NewStoreError("count messages", err)
	}
	return count, nil
}

// GetStuckSendingCount reports messages that entered sending longer ago
// than the threshold and never received a completion callback.
func (d *Database) GetStuckSendingCount(ctx context.Context, threshold time.Duration) (int, error) {
	query := `
		SELECT COUNT(*) FROM messages
		WHERE delivery_state = ?
		  AND updated_at < datetime('now', '-' || ? || ' seconds')
	`
	var count int
	err := d.db.QueryRowContext(ctx, query, models.DeliverySending, int(threshold.Seconds())).Scan(&count)
	if err != nil {
		return 0, apperrors.NewStoreError("count stuck messages", err)
	}
	return count, nil
}

func scanMessage(row deviceScanner) (*models.Message, error) {
	msg := &models.Message{}
	var attachmentURL, attachmentName *string
	var groups string

	err := row.Scan(
		&msg.ID,
		&msg.DeviceID,
		&msg.UserID,
		&msg.Body,
		&attachmentURL,
		&attachmentName,
		&groups,
		&msg.DeliveryState,
		&msg.ScheduledFor,
		&msg.SentAt,
		&msg.ErrorDetail,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(groups), &msg.TargetGroups); err != nil {
		return nil, fmt.Errorf("failed to decode target groups: %w", err)
	}

	if attachmentURL != nil {
		msg.Attachment = &models.Attachment{URL: *attachmentURL}
		if attachmentName != nil {
			msg.Attachment.Name = *attachmentName
		}
	}

	return msg, nil
}

func (d *Database) encryptOptional(value *string) (*string, error) {
	if value == nil {
		return nil, nil
	}
	encrypted, err := d.encryptor.EncryptIfEnabled(*value)
	if err != nil {
		return nil, err
	}
	return &encrypted, nil
}

func (d *Database) decryptOptional(value *string) (*string, error) {
	if value == nil {
		return nil, nil
	}
	decrypted, err := d.encryptor.DecryptIfEnabled(*value)
	if err != nil {
		return nil, err
	}
	return &decrypted, nil
}
