package mqtt

import "strings"

// Topic leaves under <prefix>/<unique_id>/
const (
	LeafState        = "state"
	LeafPosition     = "position"
	LeafAvailability = "availability"
	LeafSet          = "set"
	LeafSetPosition  = "set_position"
)

// Topics builds the topic tree rooted at a prefix
type Topics struct {
	Prefix string
}

// BridgeStatus carries "online" / "offline" and is the last-will topic
func (t Topics) BridgeStatus() string {
	return t.Prefix + "/bridge/status"
}

// Cover returns <prefix>/<unique_id>/<leaf>
func (t Topics) Cover(uniqueID, leaf string) string {
	return t.Prefix + "/" + uniqueID + "/" + leaf
}

// AllCovers matches a leaf for every cover
func (t Topics) AllCovers(leaf string) string {
	return t.Prefix + "/+/" + leaf
}

// ParseCover splits a cover topic into unique id and leaf
func (t Topics) ParseCover(topic string) (uniqueID, leaf string, ok bool) {
	rest, found := strings.CutPrefix(topic, t.Prefix+"/")
	if !found {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[0] == "bridge" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
