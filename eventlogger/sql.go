package eventlogger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/billbatista/acasinha-pots/sqldb"
)

type sqlEventLogger struct {
	db *sqldb.DB
}

func NewSqlEventLogger(db *sqldb.DB) *sqlEventLogger {
	return &sqlEventLogger{
		db: db,
	}
}

// Save stores the event. JSON goes in as text so Postgres reads it as jsonb
// instead of bytea.
func (el *sqlEventLogger) Save(ctx context.Context, e Event) error {
	jsonData, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("encoding event data: %w", err)
	}
	jsonMetadata, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("encoding event metadata: %w", err)
	}
	statement := `INSERT INTO events (id, event_type, event_data, event_metadata, created_at) VALUES (?, ?, ?, ?, ?)`
	_, err = el.db.ExecContext(ctx, el.db.Rebind(statement), e.ID, e.Type, string(jsonData), string(jsonMetadata), sqldb.ToMillis(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}

	return nil
}

// GetByType returns events of the given type, oldest first. Data is decoded
// into generic JSON values.
func (el *sqlEventLogger) GetByType(ctx context.Context, eventType string) ([]Event, error) {
	query := `SELECT id, event_type, event_data, event_metadata, created_at FROM events WHERE event_type = ? ORDER BY created_at ASC, id ASC`
	result, err := el.db.QueryContext(ctx, el.db.Rebind(query), eventType)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer result.Close()

	events := make([]Event, 0)
	for result.Next() {
		var event Event
		var jsonData, jsonMetadata sql.NullString
		var createdAt int64
		if err := result.Scan(&event.ID, &event.Type, &jsonData, &jsonMetadata, &createdAt); err != nil {
			return events, fmt.Errorf("scanning event: %w", err)
		}
		event.CreatedAt = sqldb.FromMillis(createdAt)

		if jsonData.Valid {
			if err := json.Unmarshal([]byte(jsonData.String), &event.Data); err != nil {
				return events, fmt.Errorf("decoding event data: %w", err)
			}
		}
		if jsonMetadata.Valid {
			if err := json.Unmarshal([]byte(jsonMetadata.String), &event.Metadata); err != nil {
				return events, fmt.Errorf("decoding event metadata: %w", err)
			}
		}

		events = append(events, event)
	}

	if err := result.Err(); err != nil {
		return events, err
	}

	return events, nil
}
