package worker

// ClientSurface is the window-management side of a notification client:
// focusing an already-open app window or opening a new one.
type ClientSurface interface {
	// FocusExisting focuses an open window on the app origin and
	// reports whether one was found.
	FocusExisting() bool
	// OpenWindow opens the app at url.
	OpenWindow(url string) error
}

// HandleClick resolves a notification click: an explicit dismiss does
// nothing, otherwise an existing window is focused, otherwise a new one
// opens at the notification's target URL.
func HandleClick(surface ClientSurface, action string, n Notification) error {
	if action == "dismiss" {
		return nil
	}
	if surface.FocusExisting() {
		return nil
	}
	url := n.Data["url"]
	if url == "" {
		url = "/"
	}
	return surface.OpenWindow(url)
}
