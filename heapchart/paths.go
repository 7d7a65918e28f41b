package heapchart

// Site paths.
const (
	PathDashboard = "/"
	PathLogin     = "/login"
	PathLogout    = "/logout"
	PathSignup    = "/signup"
	PathLibraries = "/libraries"
	PathFloors    = "/floors"
)

// publicPaths may be visited without a session.
var publicPaths = map[string]bool{
	PathLogin:  true,
	PathSignup: true,
}

// LibraryPath returns the path of a library page. action is empty for the
// detail page, or one of "edit", "delete", "reorganize".
func LibraryPath(id ID, action string) string {
	return objectPath("/library/", id.String(), action)
}

// FloorPath returns the path of a floor page. action is empty for the
// detail page, or one of "edit", "delete", "assign", "unassign".
func FloorPath(id ID, action string) string {
	return objectPath("/floor/", id.String(), action)
}

// CreateLibraryPath and CreateFloorPath are the forms for new records.
var (
	CreateLibraryPath = objectPath("/library/", CreationID, "edit")
	CreateFloorPath   = objectPath("/floor/", CreationID, "edit")
)

func objectPath(prefix, id, action string) string {
	if action == "" {
		return prefix + id
	}
	return prefix + id + "/" + action
}
