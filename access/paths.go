package access

import (
	"path"
	"strings"
)

// Paths classifies request paths for the Guard
type Paths struct {
	// redirect targets
	Login     string
	Billing   string
	Dashboard string

	AuthPrefix string   // every page under it is an auth page
	Exempt     []string // pages a blocked user may still open, besides auth pages
	Protected  []string // pages that need an identity
	Critical   []string // paths that must not fail open

	StaticPrefixes   []string
	StaticExtensions []string
}

// DefaultPaths returns the page layout of the dashboard frontend
func DefaultPaths() Paths {
	return Paths{
		Login:     "/auth/login",
		Billing:   "/billing",
		Dashboard: "/dashboard",

		AuthPrefix: "/auth",
		Exempt:     []string{"/billing", "/upgrade"},
		Protected:  []string{"/dashboard"},
		Critical:   []string{"/api/strategy/start"},

		StaticPrefixes:   []string{"/_next/", "/static/", "/favicon.ico"},
		StaticExtensions: []string{".svg", ".png", ".jpg", ".jpeg", ".gif", ".webp", ".ico"},
	}
}

// under reports whether p is prefix itself or a sub path of it
func under(p, prefix string) bool {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		return false
	}
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}

// IsStatic reports whether p is a static asset the Guard never evaluates
func (c Paths) IsStatic(p string) bool {
	for _, prefix := range c.StaticPrefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	ext := strings.ToLower(path.Ext(p))
	for _, e := range c.StaticExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// IsAuthPage reports whether p renders login or registration
func (c Paths) IsAuthPage(p string) bool {
	return under(p, c.AuthPrefix)
}

// IsExempt reports whether p stays reachable for users without access
func (c Paths) IsExempt(p string) bool {
	if c.IsAuthPage(p) {
		return true
	}
	for _, e := range c.Exempt {
		if under(p, e) {
			return true
		}
	}
	return false
}

// IsProtected reports whether p requires an identity
func (c Paths) IsProtected(p string) bool {
	for _, prefix := range c.Protected {
		if under(p, prefix) {
			return true
		}
	}
	return false
}

// IsCritical reports whether a store failure on p must block instead of failing open
func (c Paths) IsCritical(p string) bool {
	for _, critical := range c.Critical {
		if p == critical {
			return true
		}
	}
	return false
}
