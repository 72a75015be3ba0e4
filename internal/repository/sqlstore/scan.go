package sqlstore

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/novaconsult/nova-backend/internal/models"
)

// timestamp scans both native time values and the text SQLite hands back for
// aggregates such as MAX(created_at), which carry no declared column type.
type timestamp struct {
	time.Time
}

func (t *timestamp) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		t.Time = v.UTC()
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	case nil:
		t.Time = time.Time{}
		return nil
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}
}

func (t *timestamp) parse(s string) error {
	s = strings.TrimSuffix(s, "Z")
	for _, layout := range sqlite3.SQLiteTimestampFormats {
		if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unparseable timestamp %q", s)
}

func encodeMetadata(metadata map[string]any) (string, error) {
	if len(metadata) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(metadata)
	if err != nil {
		return "", models.ValidationError("metadata is not serializable: %v", err)
	}
	return string(b), nil
}

// decodeMetadata never skips a bad payload: the caller gets a data
// integrity error naming the offending row.
func decodeMetadata(id int64, raw string) (map[string]any, error) {
	metadata := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return metadata, nil
	}
	if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
		return nil, models.DataIntegrityError(fmt.Sprintf("decode metadata of turn %d", id), err)
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	return metadata, nil
}
