package sqlstore

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/modernwms/wmsauth/directory"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// dbTime scans timestamps from both drivers. pgx yields time.Time, the
// sqlite driver yields text for TEXT columns.
type dbTime struct {
	time.Time
}

func (t *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
		return nil
	case time.Time:
		t.Time = v
		return nil
	case int64:
		t.Time = time.Unix(v, 0).UTC()
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	default:
		return fmt.Errorf("cannot scan %T into timestamp", src)
	}
}

func (t *dbTime) parse(s string) error {
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

type userRow struct {
	ID         int64          `db:"user_id"`
	Number     string         `db:"user_num"`
	Name       string         `db:"user_name"`
	Password   string         `db:"password"`
	Role       string         `db:"user_role"`
	RoleID     int64          `db:"userrole_id"`
	TenantID   int64          `db:"tenant_id"`
	Email      sql.NullString `db:"email"`
	Phone      sql.NullString `db:"phone"`
	Avatar     sql.NullString `db:"avatar"`
	Active     bool           `db:"is_active"`
	Deleted    bool           `db:"is_deleted"`
	CreateTime dbTime         `db:"create_time"`
	UpdateTime dbTime         `db:"last_update_time"`
}

func (r userRow) principal() directory.Principal {
	return directory.Principal{
		ID:           fmt.Sprintf("%d", r.ID),
		Number:       r.Number,
		Name:         r.Name,
		Role:         r.Role,
		RoleID:       r.RoleID,
		TenantID:     r.TenantID,
		Email:        r.Email.String,
		Phone:        r.Phone.String,
		Avatar:       r.Avatar.String,
		PasswordHash: r.Password,
		Active:       r.Active,
		Deleted:      r.Deleted,
		CreatedAt:    r.CreateTime.Time,
		UpdatedAt:    r.UpdateTime.Time,
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
