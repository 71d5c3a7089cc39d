package util

import "strings"

// ConnectionStringInfo represents parsed connection string information
type ConnectionStringInfo struct {
	Scheme   string
	Username string
	Password string
	Host     string
	Port     string
	Database string
	Options  []Option
}

// Option is one key=value pair of the connection string query, in order of appearance
type Option struct {
	Key   string
	Value string
}

// SRV reports whether the connection string uses the mongodb+srv scheme
func (c *ConnectionStringInfo) SRV() bool {
	return c.Scheme == "mongodb+srv"
}

// Option returns the value of the first option named key
func (c *ConnectionStringInfo) Option(key string) (string, bool) {
	for _, opt := range c.Options {
		if opt.Key == key {
			return opt.Value, true
		}
	}
	return "", false
}

// OptionKeys returns the option names in the order they appear
func (c *ConnectionStringInfo) OptionKeys() []string {
	keys := make([]string, 0, len(c.Options))
	for _, opt := range c.Options {
		keys = append(keys, opt.Key)
	}
	return keys
}

// ParseConnectionString splits a MongoDB connection string into its parts.
// Nothing is unescaped; the password may itself contain '@', ':' or '/'.
func ParseConnectionString(connStr string) *ConnectionStringInfo {
	info := &ConnectionStringInfo{}

	rest := connStr
	if idx := strings.Index(rest, "://"); idx != -1 {
		info.Scheme = rest[:idx]
		rest = rest[idx+3:]
	}

	if idx := strings.Index(rest, "?"); idx != -1 {
		info.Options = parseOptions(rest[idx+1:])
		rest = rest[:idx]
	}

	// user info ends at the last '@' before the query; the password may hold '/'
	if idx := strings.LastIndex(rest, "@"); idx != -1 {
		userInfo := rest[:idx]
		rest = rest[idx+1:]
		userParts := strings.SplitN(userInfo, ":", 2)
		info.Username = userParts[0]
		if len(userParts) == 2 {
			info.Password = userParts[1]
		}
	}

	if idx := strings.Index(rest, "/"); idx != -1 {
		info.Database = rest[idx+1:]
		rest = rest[:idx]
	}

	info.Host = rest
	if !strings.Contains(rest, ",") {
		if idx := strings.LastIndex(rest, ":"); idx != -1 {
			info.Host = rest[:idx]
			info.Port = rest[idx+1:]
		}
	}

	return info
}

func parseOptions(query string) []Option {
	if query == "" {
		return nil
	}

	var opts []Option
	for _, pair := range strings.Split(query, "&") {
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		opt := Option{Key: kv[0]}
		if len(kv) == 2 {
			opt.Value = kv[1]
		}
		opts = append(opts, opt)
	}
	return opts
}
