// Package listing maintains the ranked, capacity-bounded listings things are
// indexed into, and derives which listings a thing belongs to.
package listing

import "strings"

// ThingInfo carries the denormalized attributes listing membership derives
// from. It is buildable from either a live thing plus its content record or
// a cached aggregate; both must yield the same paths.
type ThingInfo struct {
	Kind            string
	Topic           string
	Domain          string
	AuthorID        string
	OpID            string
	ReplyToID       string
	ReplyToAuthorID string
	ReplyToKind     string
	IsCommand       bool

	// TaggedBy lists the distinct non-anonymous authors whose commands tag
	// this thing.
	TaggedBy []string
}

// PathsFor resolves the set of listing paths a thing is ranked within.
// Unknown kinds are tabulated but ranked nowhere.
func PathsFor(t ThingInfo) []string {
	switch t.Kind {
	case "submission":
		return submissionPaths(t)
	case "comment":
		return commentPaths(t)
	case "chatmsg":
		return topicPaths("chat:", t.Topic)
	default:
		return nil
	}
}

func submissionPaths(t ThingInfo) []string {
	paths := topicPaths("", t.Topic)

	if t.Domain != "" {
		paths = append(paths, "/domain/"+t.Domain)
	}

	if t.AuthorID != "" {
		paths = append(paths,
			"/user/"+t.AuthorID+"/submitted",
			"/user/"+t.AuthorID+"/overview",
		)
	}

	for _, tagAuthorID := range t.TaggedBy {
		paths = append(paths, "/user/"+tagAuthorID+"/commented")
	}

	return paths
}

func commentPaths(t ThingInfo) []string {
	var paths []string

	if t.OpID != "" {
		paths = append(paths, "/things/"+t.OpID+"/comments")
	}

	paths = append(paths, topicPaths("comments:", t.Topic)...)

	if t.ReplyToID != "" && t.ReplyToAuthorID != "" {
		paths = append(paths, "/user/"+t.ReplyToAuthorID+"/replies/overview")
		switch t.ReplyToKind {
		case "submission":
			paths = append(paths, "/user/"+t.ReplyToAuthorID+"/replies/submitted")
		case "comment":
			paths = append(paths, "/user/"+t.ReplyToAuthorID+"/replies/comments")
		}
	}

	if t.AuthorID != "" {
		paths = append(paths,
			"/user/"+t.AuthorID+"/comments",
			"/user/"+t.AuthorID+"/overview",
		)
		if t.IsCommand {
			paths = append(paths, "/user/"+t.AuthorID+"/commands")
		}
	}

	return paths
}

// topicPaths derives the topic-scoped listing paths, handling the "all"
// aggregations. A dotted topic like "source.sub" rolls up into the source's
// own "all" topic and, for sources other than "test", the external firehose.
func topicPaths(prefix, topic string) []string {
	var paths []string

	if topic != "" {
		paths = append(paths, "/t/"+prefix+topic)
	}

	if topic == "all" {
		return paths
	}

	dotIdx := strings.Index(topic, ".")
	if dotIdx <= 0 {
		return append(paths, "/t/"+prefix+"all")
	}

	source := topic[:dotIdx]
	if source != "test" {
		paths = append(paths, "/t/"+prefix+"external.all")
	}
	return append(paths, "/t/"+prefix+source+".all")
}
