package graph

import (
	"fmt"
	"strings"
)

// Prefix is the namespace every structural soul lives under.
const Prefix = "nab"

// OraclesSoul is the checkpoint node holding the last-processed change-feed
// cursor per role.
const OraclesSoul = "oracles"

// ThingSoul returns the soul of a thing reference node.
func ThingSoul(thingID string) string {
	return fmt.Sprintf("%s/things/%s", Prefix, thingID)
}

// ParseThingSoul extracts the thing id from a thing reference soul. It does
// not match subpaths such as vote collections or data records.
func ParseThingSoul(soul string) (string, bool) {
	rest, ok := strings.CutPrefix(soul, Prefix+"/things/")
	if !ok || rest == "" || strings.ContainsRune(rest, '/') {
		return "", false
	}
	return rest, true
}

// ThingDataSoul returns the soul of an unsigned (anonymous) content record.
func ThingDataSoul(thingID string) string {
	return fmt.Sprintf("%s/things/%s/data", Prefix, thingID)
}

// ThingDataSignedSoul returns the soul of a content record owned by an author.
func ThingDataSignedSoul(thingID, authorID string) string {
	return fmt.Sprintf("%s/things/%s/data~%s.", Prefix, thingID, authorID)
}

// ParseThingDataSoul extracts the thing id from a signed or unsigned content
// record soul.
func ParseThingDataSoul(soul string) (string, bool) {
	rest, ok := strings.CutPrefix(soul, Prefix+"/things/")
	if !ok {
		return "", false
	}
	thingID, suffix, ok := strings.Cut(rest, "/")
	if !ok || thingID == "" {
		return "", false
	}
	if suffix == "data" {
		return thingID, true
	}
	if strings.HasPrefix(suffix, "data~") && strings.HasSuffix(suffix, ".") {
		return thingID, true
	}
	return "", false
}

// VotesUpSoul returns the soul of a thing's up-vote collection.
func VotesUpSoul(thingID string) string {
	return fmt.Sprintf("%s/things/%s/votesup", Prefix, thingID)
}

// VotesDownSoul returns the soul of a thing's down-vote collection.
func VotesDownSoul(thingID string) string {
	return fmt.Sprintf("%s/things/%s/votesdown", Prefix, thingID)
}

// ParseVotesUpSoul extracts the thing id from an up-vote collection soul.
func ParseVotesUpSoul(soul string) (string, bool) {
	return parseThingSubpath(soul, "/votesup")
}

// ParseVotesDownSoul extracts the thing id from a down-vote collection soul.
func ParseVotesDownSoul(soul string) (string, bool) {
	return parseThingSubpath(soul, "/votesdown")
}

// VoteCountsSoul returns the soul of the per-tabulator counters node for a
// thing.
func VoteCountsSoul(thingID, tabulator string) string {
	return fmt.Sprintf("%s/things/%s/votecounts@~%s.", Prefix, thingID, tabulator)
}

// ParseVoteCountsSoul extracts the thing id and tabulator identity from a
// counters soul.
func ParseVoteCountsSoul(soul string) (thingID, tabulator string, ok bool) {
	rest, found := strings.CutPrefix(soul, Prefix+"/things/")
	if !found {
		return "", "", false
	}
	thingID, suffix, found := strings.Cut(rest, "/")
	if !found || thingID == "" {
		return "", "", false
	}
	tabulator, found = strings.CutPrefix(suffix, "votecounts@~")
	if !found {
		return "", "", false
	}
	tabulator, found = strings.CutSuffix(tabulator, ".")
	if !found || tabulator == "" {
		return "", "", false
	}
	return thingID, tabulator, true
}

// TopicSoul returns the soul of a topic node.
func TopicSoul(topicName string) string {
	return fmt.Sprintf("%s/topics/%s", Prefix, topicName)
}

// ParseTopicSoul extracts the topic name from a topic soul.
func ParseTopicSoul(soul string) (string, bool) {
	rest, ok := strings.CutPrefix(soul, Prefix+"/topics/")
	if !ok || rest == "" {
		return "", false
	}
	return rest, true
}

// AuthorSoul returns the soul of an author's identity node.
func AuthorSoul(authorID string) string {
	return "~" + authorID
}

// ParseAuthorSoul extracts the author id from an identity soul.
func ParseAuthorSoul(soul string) (string, bool) {
	rest, ok := strings.CutPrefix(soul, "~")
	if !ok || rest == "" || strings.HasPrefix(rest, "@") {
		return "", false
	}
	return rest, true
}

// ListingSoul returns the soul of a listing node for a path such as
// "/t/news/hot", owned by the given indexer identity.
func ListingSoul(indexer, path string) string {
	return fmt.Sprintf("%s%s@~%s.", Prefix, path, indexer)
}

// ListingPath recovers the listing path from a listing soul, dropping the
// namespace prefix and the owner suffix.
func ListingPath(soul string) (string, bool) {
	rest, ok := strings.CutPrefix(soul, Prefix)
	if !ok {
		return "", false
	}
	idx := strings.LastIndex(rest, "@~")
	if idx < 0 || !strings.HasSuffix(rest, ".") {
		return "", false
	}
	return rest[:idx], true
}

func parseThingSubpath(soul, suffix string) (string, bool) {
	rest, ok := strings.CutPrefix(soul, Prefix+"/things/")
	if !ok {
		return "", false
	}
	thingID, ok := strings.CutSuffix(rest, suffix)
	if !ok || thingID == "" || strings.ContainsRune(thingID, '/') {
		return "", false
	}
	return thingID, true
}
