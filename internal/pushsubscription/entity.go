package pushsubscription

import "time"

// Subscription is a browser push endpoint. An empty Projects list receives
// notifications for every project.
type Subscription struct {
	ID        string    `yaml:"id" json:"id"`
	Endpoint  string    `yaml:"endpoint" json:"endpoint"`
	P256dhKey string    `yaml:"p256dh_key" json:"-"`
	AuthKey   string    `yaml:"auth_key" json:"-"`
	Projects  []string  `yaml:"projects,omitempty" json:"projects,omitempty"`
	CreatedAt time.Time `yaml:"created_at" json:"createdAt"`
}

// Wants reports whether the subscription receives notifications about
// projectName. Notifications without a project go to everyone.
func (s *Subscription) Wants(projectName string) bool {
	if len(s.Projects) == 0 || projectName == "" {
		return true
	}
	for _, p := range s.Projects {
		if p == projectName {
			return true
		}
	}
	return false
}
