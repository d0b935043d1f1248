package types

// Social holds a team member's profile links.
type Social struct {
	Facebook string `json:"facebook"`
	Twitter  string `json:"twitter"`
	LinkedIn string `json:"linkedin"`
	GitHub   string `json:"github"`
}

// TeamMember is a board member shown on the team page.
type TeamMember struct {
	ID       string `json:"-"`
	Name     string `json:"name"`
	Position string `json:"position"`
	Image    string `json:"image"`
	Social   Social `json:"social"`
}

func (m TeamMember) Key() string       { return m.ID }
func (m *TeamMember) SetKey(id string) { m.ID = id }

// EventStatus is an event's lifecycle state.
type EventStatus string

const (
	EventUpcoming EventStatus = "upcoming"
	EventPast     EventStatus = "past"
)

// Event is a club event.
type Event struct {
	ID          string      `json:"-"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Date        string      `json:"date"`
	Location    string      `json:"location"`
	Attendees   string      `json:"attendees"`
	Image       string      `json:"image"`
	Status      EventStatus `json:"status"`
}

func (e Event) Key() string       { return e.ID }
func (e *Event) SetKey(id string) { e.ID = id }

// Competition is a competition the club takes part in.
type Competition struct {
	ID          string `json:"-"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Image       string `json:"image"`
}

func (c Competition) Key() string       { return c.ID }
func (c *Competition) SetKey(id string) { c.ID = id }

// Achievement is a recorded club achievement.
type Achievement struct {
	ID          string `json:"-"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Image       string `json:"image"`
}

func (a Achievement) Key() string       { return a.ID }
func (a *Achievement) SetKey(id string) { a.ID = id }

// Trip is a club trip with a photo gallery.
type Trip struct {
	ID          string   `json:"-"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Date        string   `json:"date"`
	Location    string   `json:"location"`
	Images      []string `json:"images"`
}

func (t Trip) Key() string       { return t.ID }
func (t *Trip) SetKey(id string) { t.ID = id }

// Slide is a home page carousel slide.
type Slide struct {
	ID       string `json:"-"`
	Image    string `json:"image"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
}

func (s Slide) Key() string       { return s.ID }
func (s *Slide) SetKey(id string) { s.ID = id }

// Committee identifies a member committee.
type Committee string

const (
	CommitteeHR           Committee = "hr"
	CommitteePR           Committee = "pr"
	CommitteeCreativity   Committee = "creativity"
	CommitteeOrganization Committee = "organization"
	CommitteeMedia        Committee = "media"
	CommitteeActivity     Committee = "activity"
)

// Committees lists the known committees in display order.
var Committees = []Committee{
	CommitteeHR,
	CommitteePR,
	CommitteeCreativity,
	CommitteeOrganization,
	CommitteeMedia,
	CommitteeActivity,
}

// Valid reports whether c is a known committee.
func (c Committee) Valid() bool {
	for _, known := range Committees {
		if c == known {
			return true
		}
	}
	return false
}

// Member is a committee member.
type Member struct {
	ID        string    `json:"-"`
	Name      string    `json:"name"`
	Committee Committee `json:"committee"`
	Image     string    `json:"image"`
}

func (m Member) Key() string       { return m.ID }
func (m *Member) SetKey(id string) { m.ID = id }
