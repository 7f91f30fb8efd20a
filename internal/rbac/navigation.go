package rbac

import (
	"context"
	"log/slog"
)

// NavItem is one entry of the application menu.
type NavItem struct {
	Label    string
	Href     string
	Icon     string
	Resource Resource
	Public   bool
	Children []NavItem
}

// Navigator prunes menus down to what an identity may read.
type Navigator struct {
	resolver IdentityResolver
	logger   *slog.Logger
}

// NewNavigator constructs a Navigator.
func NewNavigator(resolver IdentityResolver, logger *slog.Logger) *Navigator {
	return &Navigator{resolver: resolver, logger: logger}
}

// Filter returns the entries userID may see. The identity is resolved once;
// when it does not resolve the result is empty.
func (n *Navigator) Filter(ctx context.Context, items []NavItem, userID int64) []NavItem {
	if n == nil || n.resolver == nil {
		return []NavItem{}
	}
	id, err := n.resolver.Resolve(ctx, userID)
	if err != nil {
		if n.logger != nil {
			n.logger.Error("navigation resolve identity", slog.Any("error", err), slog.Int64("user_id", userID))
		}
		return []NavItem{}
	}
	if id == nil {
		return []NavItem{}
	}
	return FilterFor(id, items)
}

// FilterFor prunes items for an already resolved identity.
func FilterFor(id *Identity, items []NavItem) []NavItem {
	out := make([]NavItem, 0, len(items))
	for _, item := range items {
		if !visible(id, item) {
			continue
		}
		if len(item.Children) > 0 {
			item.Children = FilterFor(id, item.Children)
		}
		out = append(out, item)
	}
	return out
}

func visible(id *Identity, item NavItem) bool {
	if item.Public {
		return true
	}
	if item.Resource == "" {
		return false
	}
	return id.Can(item.Resource, OpRead)
}
