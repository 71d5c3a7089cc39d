package connstring

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	schemeStandard = "mongodb://"
	schemeSRV      = "mongodb+srv://"

	defaultReadPreference = "secondaryPreferred"
	defaultAuthMechanism  = "SCRAM-SHA-256"
)

var (
	// ErrMissingField is returned when a required connection setting is absent
	ErrMissingField = errors.New("missing required connection setting")
	// ErrInvalidField is returned when a connection setting has an unusable type
	ErrInvalidField = errors.New("invalid connection setting")
)

// ConnectionConfig holds the connector settings a connection string is built from.
// Flags are nil when the setting was not supplied.
type ConnectionConfig struct {
	Host         string
	User         string
	Password     string
	Database     string
	AuthDatabase string
	Port         string
	ReplicaSet   string
	URI          string

	SSL        *bool
	VerifyMode *bool
	SRV        *bool
}

// IsSRV reports whether the mongodb+srv form is selected
func (c ConnectionConfig) IsSRV() bool {
	return c.SRV != nil && *c.SRV
}

// TLSEnabled reports whether tls=true is emitted
func (c ConnectionConfig) TLSEnabled() bool {
	return c.SSL != nil && *c.SSL
}

// AllowInvalidCertificates reports whether certificate verification is disabled.
// verify_mode defaults to true, so only an explicit false turns it off.
func (c ConnectionConfig) AllowInvalidCertificates() bool {
	return c.TLSEnabled() && c.VerifyMode != nil && !*c.VerifyMode
}

// FromMap converts a loose connector configuration into a ConnectionConfig
func FromMap(raw map[string]interface{}) (ConnectionConfig, error) {
	var cfg ConnectionConfig

	strFields := []struct {
		key string
		dst *string
	}{
		{"host", &cfg.Host},
		{"user", &cfg.User},
		{"password", &cfg.Password},
		{"database", &cfg.Database},
		{"auth_database", &cfg.AuthDatabase},
		{"replica_set", &cfg.ReplicaSet},
		{"uri", &cfg.URI},
	}
	for _, f := range strFields {
		v, ok := raw[f.key]
		if !ok || v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return ConnectionConfig{}, fmt.Errorf("%w: %s must be a string, got %T", ErrInvalidField, f.key, v)
		}
		*f.dst = s
	}

	if v, ok := raw["port"]; ok && v != nil {
		port, err := portString(v)
		if err != nil {
			return ConnectionConfig{}, err
		}
		cfg.Port = port
	}

	cfg.SSL = flag(raw, "ssl")
	cfg.VerifyMode = flag(raw, "verify_mode")
	cfg.SRV = flag(raw, "srv")

	return cfg, nil
}

// Build returns the connection string for cfg.
// A non-empty URI is returned unchanged and every other field is ignored.
func Build(cfg ConnectionConfig) (string, error) {
	if cfg.URI != "" {
		return cfg.URI, nil
	}

	if err := validate(cfg); err != nil {
		return "", err
	}

	scheme := schemeStandard
	authority := fmt.Sprintf("%s:%s@%s", cfg.User, cfg.Password, cfg.Host)
	if cfg.IsSRV() {
		scheme = schemeSRV
	} else {
		authority += ":" + cfg.Port
	}

	params := []string{
		"readPreference=" + defaultReadPreference,
		"authSource=" + cfg.AuthDatabase,
	}
	if cfg.ReplicaSet != "" {
		params = append(params, "replicaSet="+cfg.ReplicaSet)
	}
	if cfg.TLSEnabled() {
		params = append(params, "tls=true")
	}
	if cfg.AllowInvalidCertificates() {
		params = append(params, "tlsAllowInvalidCertificates=true")
	}
	params = append(params, "authMechanism="+defaultAuthMechanism)

	return scheme + authority + "/" + cfg.Database + "?" + strings.Join(params, "&"), nil
}

// GetConnectionString builds the connection string straight from a loose configuration
func GetConnectionString(raw map[string]interface{}) (string, error) {
	cfg, err := FromMap(raw)
	if err != nil {
		return "", err
	}
	return Build(cfg)
}

type setting struct {
	key   string
	value string
}

func validate(cfg ConnectionConfig) error {
	required := []setting{
		{"host", cfg.Host},
		{"user", cfg.User},
		{"password", cfg.Password},
		{"database", cfg.Database},
		{"auth_database", cfg.AuthDatabase},
	}
	if !cfg.IsSRV() {
		required = append(required, setting{"port", cfg.Port})
	}

	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%w: %s", ErrMissingField, r.key)
		}
	}
	return nil
}

func flag(raw map[string]interface{}, key string) *bool {
	v, ok := raw[key]
	if !ok || v == nil {
		return nil
	}
	b := toBool(v)
	return &b
}

// toBool treats boolean true and the exact string "true" as true
func toBool(v interface{}) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return b == "true"
	default:
		return false
	}
}

func portString(v interface{}) (string, error) {
	switch p := v.(type) {
	case string:
		return p, nil
	case int:
		return strconv.Itoa(p), nil
	case int32:
		return strconv.FormatInt(int64(p), 10), nil
	case int64:
		return strconv.FormatInt(p, 10), nil
	case uint:
		return strconv.FormatUint(uint64(p), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(p), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(p), 10), nil
	case uint64:
		return strconv.FormatUint(p, 10), nil
	case float64:
		// JSON numbers decode as float64
		if p != math.Trunc(p) || math.IsInf(p, 0) {
			return "", fmt.Errorf("%w: port must be a whole number, got %v", ErrInvalidField, p)
		}
		return strconv.FormatInt(int64(p), 10), nil
	default:
		return "", fmt.Errorf("%w: port must be a string or number, got %T", ErrInvalidField, v)
	}
}
