package logging

import (
	"fmt"
	"regexp"

	"go.uber.org/zap/zapcore"
)

// RedactionRule masks field values before they are written. A rule with a
// Key applies to that field only; a rule without one applies to every
// string-like field. Without a Pattern the whole value is replaced.
type RedactionRule struct {
	Key         string
	Pattern     string
	Replacement string
}

// DefaultRedactionRules mask the fields that can carry KEM key material and
// long hex runs that look like encoded keys.
func DefaultRedactionRules() []RedactionRule {
	return []RedactionRule{
		{Key: "secret_key"},
		{Key: "shared_secret"},
		{Key: "ephemeral_secret"},
		{Key: "vault_token"},
		{Pattern: `[0-9a-fA-F]{96,}`},
	}
}

const defaultReplacement = "[REDACTED]"

type compiledRule struct {
	key         string
	replacement string
	pattern     *regexp.Regexp
}

func compileRules(rules []RedactionRule) ([]compiledRule, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		if r.Key == "" && r.Pattern == "" {
			continue
		}
		c := compiledRule{key: r.Key, replacement: r.Replacement}
		if c.replacement == "" {
			c.replacement = defaultReplacement
		}
		if r.Pattern != "" {
			re, err := regexp.Compile(r.Pattern)
			if err != nil {
				return nil, fmt.Errorf("invalid redaction pattern %q: %w", r.Pattern, err)
			}
			c.pattern = re
		}
		compiled = append(compiled, c)
	}
	return compiled, nil
}

func (r compiledRule) matches(key string) bool {
	return r.key == "" || r.key == key
}

func (r compiledRule) apply(value string) string {
	if r.pattern == nil {
		return r.replacement
	}
	return r.pattern.ReplaceAllString(value, r.replacement)
}

// redactingCore rewrites fields on their way to the wrapped core, including
// fields attached earlier through With.
type redactingCore struct {
	zapcore.Core
	rules []compiledRule
}

func (c *redactingCore) With(fields []zapcore.Field) zapcore.Core {
	return &redactingCore{Core: c.Core.With(c.redact(fields)), rules: c.rules}
}

func (c *redactingCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *redactingCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	return c.Core.Write(ent, c.redact(fields))
}

func (c *redactingCore) redact(fields []zapcore.Field) []zapcore.Field {
	out := make([]zapcore.Field, len(fields))
	for i, f := range fields {
		out[i] = c.redactField(f)
	}
	return out
}

func (c *redactingCore) redactField(f zapcore.Field) zapcore.Field {
	for _, rule := range c.rules {
		if !rule.matches(f.Key) {
			continue
		}
		switch f.Type {
		case zapcore.StringType:
			f.String = rule.apply(f.String)
		case zapcore.StringerType:
			if s, ok := f.Interface.(fmt.Stringer); ok {
				f = stringField(f.Key, rule.apply(s.String()))
			}
		case zapcore.ErrorType:
			if err, ok := f.Interface.(error); ok {
				f = stringField(f.Key, rule.apply(err.Error()))
			}
		case zapcore.BinaryType, zapcore.ByteStringType:
			// Raw bytes are only masked by keyed rules; patterns cannot see
			// into them.
			if rule.key != "" {
				f = stringField(f.Key, rule.replacement)
			}
		}
	}
	return f
}

func stringField(key, value string) zapcore.Field {
	return zapcore.Field{Key: key, Type: zapcore.StringType, String: value}
}
