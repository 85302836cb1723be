package sqlite

import (
	"database/sql"

	"camscout/internal/domain"
)

// ============================================================================
// Null Type Conversion Helpers
// ============================================================================

// nullToString safely converts sql.NullString to string
func nullToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// stringToNull safely converts string to sql.NullString
func stringToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// ============================================================================
// Schema Evolution Guide
// ============================================================================
//
// To add a new column to the streams table:
// 1. Add field to streamRow struct (below)
// 2. Update scanArgs() - APPEND to end to match column order
// 3. Update streamColumns constant - APPEND to end
// 4. Update toDomain() to map new field to domain.Stream
// 5. Update streamInsertArgs() and the UPDATE statement if writable
// 6. Add migration in sqlite.go migrate()
//
// CRITICAL: Column order must match between:
// - streamColumns constant
// - scanArgs() return slice
// - streamInsertArgs() return slice

// ============================================================================
// Stream Row Scanner
// ============================================================================

// streamRow holds all columns from a stream query for scanning
type streamRow struct {
	Address       string
	Port          int64
	Username      sql.NullString
	Password      sql.NullString
	Route         sql.NullString
	ServiceName   string
	Product       sql.NullString
	Protocol      sql.NullString
	State         string
	IDsFound      bool
	PathFound     bool
	ThumbnailPath sql.NullString
}

// scanArgs returns pointers to all fields for sql.Scan()
// MUST match streamColumns order exactly
func (r *streamRow) scanArgs() []interface{} {
	return []interface{}{
		&r.Address,       // 1
		&r.Port,          // 2
		&r.Username,      // 3
		&r.Password,      // 4
		&r.Route,         // 5
		&r.ServiceName,   // 6
		&r.Product,       // 7
		&r.Protocol,      // 8
		&r.State,         // 9
		&r.IDsFound,      // 10
		&r.PathFound,     // 11
		&r.ThumbnailPath, // 12
	}
}

// toDomain converts the scanned row to a domain.Stream
func (r *streamRow) toDomain() domain.Stream {
	return domain.Stream{
		Address:       r.Address,
		Port:          uint16(r.Port),
		Username:      nullToString(r.Username),
		Password:      nullToString(r.Password),
		Route:         nullToString(r.Route),
		ServiceName:   r.ServiceName,
		Product:       nullToString(r.Product),
		Protocol:      nullToString(r.Protocol),
		State:         r.State,
		IDsFound:      r.IDsFound,
		PathFound:     r.PathFound,
		ThumbnailPath: nullToString(r.ThumbnailPath),
	}
}

// streamColumns is the SELECT column list for stream queries
const streamColumns = `address, port, username, password, route, service_name,
	product, protocol, state, ids_found, path_found, thumbnail_path`

// ============================================================================
// Stream Write Helpers
// ============================================================================

// streamInsertArgs prepares arguments for stream INSERT
// Returns values in streamColumns order
func streamInsertArgs(s domain.Stream) []interface{} {
	return []interface{}{
		s.Address,
		int64(s.Port),
		stringToNull(s.Username),
		stringToNull(s.Password),
		stringToNull(s.Route),
		s.ServiceName,
		stringToNull(s.Product),
		stringToNull(s.Protocol),
		s.State,
		s.IDsFound,
		s.PathFound,
		stringToNull(s.ThumbnailPath),
	}
}
