package parser

import (
	"database/sql"
	"fmt"
	"strings"

	"firewall-simulator/internal/model"

	_ "github.com/go-sql-driver/mysql"
)

// MariaDBLoader reads a rule set from the fw_rule table. It never writes.
type MariaDBLoader struct {
	db *sql.DB
}

func NewMariaDBLoader(dsn string) (*MariaDBLoader, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return &MariaDBLoader{db: db}, nil
}

func (l *MariaDBLoader) Close() {
	l.db.Close()
}

// Load returns the enabled rules in (priority, rule_id) order. The rule_id
// column only orders rows; the store assigns fresh ids on import.
func (l *MariaDBLoader) Load() ([]model.RuleSpec, error) {
	rows, err := l.db.Query("SELECT rule_id, action, src_ip, dst_ip, port, protocol, priority, is_enabled FROM fw_rule ORDER BY priority ASC, rule_id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	defer rows.Close()

	var specs []model.RuleSpec
	for rows.Next() {
		var ruleID int64
		var action, protocol, isEnabled string
		var srcIP, dstIP sql.NullString
		var port, priority sql.NullInt64

		if err := rows.Scan(&ruleID, &action, &srcIP, &dstIP, &port, &protocol, &priority, &isEnabled); err != nil {
			return nil, err
		}
		if !strings.EqualFold(isEnabled, "enable") {
			continue
		}

		spec := model.RuleSpec{
			Action:   model.Action(action),
			SrcIP:    normalizeAny(srcIP),
			DstIP:    normalizeAny(dstIP),
			Protocol: model.Protocol(protocol),
		}
		if port.Valid {
			spec.Port = int(port.Int64)
		}
		if priority.Valid {
			p := int(priority.Int64)
			spec.Priority = &p
		}
		specs = append(specs, spec)
	}
	return specs, rows.Err()
}

// normalizeAny maps NULL, "" and "all" to the unconstrained address.
func normalizeAny(s sql.NullString) string {
	if !s.Valid || strings.EqualFold(strings.TrimSpace(s.String), "all") {
		return ""
	}
	return strings.TrimSpace(s.String)
}
