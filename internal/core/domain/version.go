package domain

import "fmt"

// ProjectVersion is the editor-style four part version: major, minor,
// patch and release candidate (0 for a final release).
type ProjectVersion [4]int

// String formats the version as "1.2.3" or "1.2.3-rc4".
func (v ProjectVersion) String() string {
	s := fmt.Sprintf("%d.%d.%d", v[0], v[1], v[2])
	if v[3] != 0 {
		s += fmt.Sprintf("-rc%d", v[3])
	}
	return s
}

// UserAgent identifies the client to the remote service.
//
// Example:
//
//	UserAgent("WonderlandEditor", ProjectVersion{1, 2, 3, 0}) // returns "WonderlandEditor/1.2.3"
func UserAgent(client string, v ProjectVersion) string {
	return client + "/" + v.String()
}
