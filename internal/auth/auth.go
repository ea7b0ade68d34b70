// Package auth implements the bearer-token permission checks described as
// an external collaborator in spec.md §6: a thin client of the core that
// maps a presented token to a per-action allow rule and decides whether a
// given collection slug is permitted. Ported from the original
// implementation's permissions.rs (TokenInfo/TokenPermission/
// check_access_token/assert_access), generalized from its three hard-coded
// PermissionType variants to one Action type.
package auth

import (
	"context"
	"strings"

	"golang.org/x/xerrors"

	"github.com/5IGI0/Masstuffy/internal/index"
	"github.com/5IGI0/Masstuffy/internal/reposvc"
)

// ErrForbidden is returned by AssertAccess when the token (or the anonymous
// fallback) does not grant the requested action on the given slug.
var ErrForbidden = xerrors.New("forbidden")

// Action is one of the three permission-checked operations.
type Action int

const (
	Read Action = iota
	Write
	Delete
)

// Permission is one token's (or the anonymous default's) grant for a single
// action, mirroring permissions.rs's TokenPermission enum.
type Permission struct {
	Kind   reposvc.PermKind
	List   []string // populated iff Kind == PermList
	Prefix string   // populated iff Kind == PermPrefix
}

// Check reports whether the permission allows access to collSlug.
func (p Permission) Check(collSlug string) bool {
	switch p.Kind {
	case reposvc.PermAny:
		return true
	case reposvc.PermList:
		for _, s := range p.List {
			if s == collSlug {
				return true
			}
		}
		return false
	case reposvc.PermPrefix:
		return strings.HasPrefix(collSlug, p.Prefix)
	default: // PermNone, or an unrecognized kind
		return false
	}
}

// PermissionFromStored decodes a stored (kind, perms) pair the way
// permissions.rs's TokenPermission::from_db_perms does: an empty/unknown
// kind maps to None, and a "list" kind's perms are comma-joined.
func PermissionFromStored(kind, perms string) Permission {
	switch reposvc.PermKind(kind) {
	case reposvc.PermAny:
		return Permission{Kind: reposvc.PermAny}
	case reposvc.PermList:
		var list []string
		if perms != "" {
			list = strings.Split(perms, ",")
		}
		return Permission{Kind: reposvc.PermList, List: list}
	case reposvc.PermPrefix:
		return Permission{Kind: reposvc.PermPrefix, Prefix: perms}
	default:
		return Permission{Kind: reposvc.PermNone}
	}
}

// TokenInfo is one bearer token's decoded permission grant for all three
// actions, mirroring permissions.rs's TokenInfo.
type TokenInfo struct {
	Token, Comment                    string
	ReadPerms, WritePerms, DeletePerms Permission
}

func tokenInfoFromRow(t index.Token) TokenInfo {
	return TokenInfo{
		Token:       t.Token,
		Comment:     t.Comment,
		ReadPerms:   PermissionFromStored(t.ReadKind, t.ReadPerms),
		WritePerms:  PermissionFromStored(t.WriteKind, t.WritePerms),
		DeletePerms: PermissionFromStored(t.DeleteKind, t.DeletePerms),
	}
}

// defaultPermissionsFromConfig builds the anonymous fallback TokenInfo from
// the root's configured anonymous_{read,write,delete}_perms{,_kind} entries.
func defaultPermissionsFromConfig(cfg reposvc.Config) TokenInfo {
	return TokenInfo{
		ReadPerms:   PermissionFromStored(string(cfg.AnonymousReadKind), cfg.AnonymousReadPerms),
		WritePerms:  PermissionFromStored(string(cfg.AnonymousWriteKind), cfg.AnonymousWritePerms),
		DeletePerms: PermissionFromStored(string(cfg.AnonymousDeleteKind), cfg.AnonymousDeletePerms),
	}
}

// Checker resolves bearer tokens against the external index's token table,
// falling back to the root's configured anonymous permissions for an
// absent/unknown token.
type Checker struct {
	idx  index.Client
	root *reposvc.Root
}

// NewChecker builds a Checker backed by idx for token lookups and root for
// the anonymous fallback configuration.
func NewChecker(idx index.Client, root *reposvc.Root) *Checker {
	return &Checker{idx: idx, root: root}
}

// resolve returns the TokenInfo for token, or the anonymous default if
// token is empty or unknown.
func (c *Checker) resolve(ctx context.Context, token string) TokenInfo {
	if token != "" {
		if t, err := c.idx.GetToken(ctx, token); err == nil {
			return tokenInfoFromRow(t)
		}
	}
	return defaultPermissionsFromConfig(c.root.Config)
}

// permissionFor selects the per-action permission out of a resolved TokenInfo.
func permissionFor(ti TokenInfo, action Action) Permission {
	switch action {
	case Read:
		return ti.ReadPerms
	case Write:
		return ti.WritePerms
	case Delete:
		return ti.DeletePerms
	default:
		return Permission{Kind: reposvc.PermNone}
	}
}

// CheckAccessToken reports whether token grants action on collSlug, falling
// back to the anonymous default when token is empty or unrecognized.
func (c *Checker) CheckAccessToken(ctx context.Context, action Action, token, collSlug string) bool {
	ti := c.resolve(ctx, token)
	return permissionFor(ti, action).Check(collSlug)
}

// AssertAccess returns ErrForbidden unless CheckAccessToken would report true.
func (c *Checker) AssertAccess(ctx context.Context, action Action, token, collSlug string) error {
	if !c.CheckAccessToken(ctx, action, token, collSlug) {
		return ErrForbidden
	}
	return nil
}
