package services

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// folderIDPattern matches an opaque Drive object id.
var folderIDPattern = regexp.MustCompile(`[A-Za-z0-9_-]{25,}`)

// ResolveFolderID extracts the folder id from a sharing link. The segment
// after /folders/ and the id= query parameter are preferred; otherwise the
// first qualifying token anywhere in the link is used.
func ResolveFolderID(link string) (string, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return "", invalidLinkError(fmt.Errorf("empty link"))
	}

	if u, err := url.Parse(link); err == nil {
		if id := u.Query().Get("id"); id != "" && folderIDPattern.FindString(id) == id {
			return id, nil
		}
		segments := strings.Split(u.Path, "/")
		for i, seg := range segments {
			if seg == "folders" && i+1 < len(segments) {
				if id := folderIDPattern.FindString(segments[i+1]); id != "" {
					return id, nil
				}
			}
		}
	}

	if id := folderIDPattern.FindString(link); id != "" {
		return id, nil
	}
	return "", invalidLinkError(fmt.Errorf("no folder id found in %q", link))
}
