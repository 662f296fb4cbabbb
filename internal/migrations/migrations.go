package migrations

// initialSchema creates the devices and messages tables. Messages carry no
// foreign key to devices: a device may be deleted while its historical
// messages remain readable.
const initialSchema = `
CREATE TABLE IF NOT EXISTS devices (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    name TEXT NOT NULL,
    connection_state TEXT NOT NULL DEFAULT 'disconnected',
    pairing_credential TEXT,
    credential_issued_at DATETIME,
    phone_number TEXT,
    last_seen_at DATETIME,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_devices_user ON devices(user_id);
CREATE INDEX IF NOT EXISTS idx_devices_state ON devices(connection_state);

CREATE TRIGGER IF NOT EXISTS devices_updated_at
AFTER UPDATE ON devices
BEGIN
    UPDATE devices SET updated_at = CURRENT_TIMESTAMP
    WHERE id = NEW.id;
END;

CREATE TABLE IF NOT EXISTS messages (
    id TEXT PRIMARY KEY,
    device_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    body TEXT NOT NULL,
    attachment_url TEXT,
    attachment_name TEXT,
    target_groups TEXT NOT NULL,
    delivery_state TEXT NOT NULL DEFAULT 'pending',
    scheduled_for DATETIME,
    sent_at DATETIME,
    error_detail TEXT,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_messages_user ON messages(user_id);
CREATE INDEX IF NOT EXISTS idx_messages_device ON messages(device_id);
CREATE INDEX IF NOT EXISTS idx_messages_state ON messages(delivery_state);
CREATE INDEX IF NOT EXISTS idx_messages_due ON messages(delivery_state, scheduled_for);

CREATE TRIGGER IF NOT EXISTS messages_updated_at
AFTER UPDATE ON messages
BEGIN
    UPDATE messages SET updated_at = CURRENT_TIMESTAMP
    WHERE id = NEW.id;
END;
`

// GetInitialSchema returns the initial database schema
func GetInitialSchema() string {
	return initialSchema
}
