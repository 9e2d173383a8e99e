package bot

import (
	"github.com/sigmah735-debug/telegrambot/internal/state"
)

// isAdmin reports whether id may run privileged commands: the admin set must
// be non-empty and contain id. An empty set means nobody is admin yet, not
// that everybody is.
func isAdmin(id int64, st state.State) bool {
	return len(st.AdminIDs) > 0 && st.HasAdmin(id)
}

// requireAdmin gates a privileged command. The returned error maps to the
// "admins only" reply and causes no mutation.
func requireAdmin(id int64, st state.State) error {
	if !isAdmin(id, st) {
		return errUnauthorized
	}
	return nil
}
