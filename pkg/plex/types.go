package plex

// sectionsContainer is the XML envelope returned by /library/sections
type sectionsContainer struct {
	Size        int         `xml:"size,attr"`
	Directories []Directory `xml:"Directory"`
}

// Directory describes a single library section on the media server
type Directory struct {
	Key   string `xml:"key,attr"`
	Title string `xml:"title,attr"`
	Type  string `xml:"type,attr"`
	Agent string `xml:"agent,attr"`
}

// usersContainer is the XML envelope returned by plex.tv /api/users
type usersContainer struct {
	Size  int    `xml:"size,attr"`
	Users []User `xml:"User"`
}

// User is a shared or home user attached to the Plex account
type User struct {
	ID       string `xml:"id,attr"`
	UUID     string `xml:"uuid,attr"`
	Title    string `xml:"title,attr"`
	Username string `xml:"username,attr"`
	Email    string `xml:"email,attr"`
	Thumb    string `xml:"thumb,attr"`
	Home     bool   `xml:"home,attr"`
}

// DisplayName returns the username, falling back to the profile title
// for managed home users that have no username of their own.
func (u User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	return u.Title
}

// ServerIdentity describes the media server answering on the configured URL
type ServerIdentity struct {
	MachineIdentifier string `xml:"machineIdentifier,attr"`
	Version           string `xml:"version,attr"`
	Claimed           bool   `xml:"claimed,attr"`
}
