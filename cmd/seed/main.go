package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/blackmichael/graph-listings/internal/graph"
	"github.com/blackmichael/graph-listings/internal/peer"
	"github.com/blackmichael/graph-listings/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		dataDir     string
		peerURL     string
		topics      string
		submissions int
		comments    int
		maxVotes    int
	)

	flag.StringVar(&dataDir, "data-dir", envOrDefault("DATA_DIR", "./data"), "Local node store directory")
	flag.StringVar(&peerURL, "peer", envOrDefault("PEER_URL", ""), "Remote graph peer URL (writes locally when empty)")
	flag.StringVar(&topics, "topics", "whatever,news,tech", "Comma-separated topics to seed into")
	flag.IntVar(&submissions, "submissions", 20, "Number of submissions to create")
	flag.IntVar(&comments, "comments", 3, "Comments per submission")
	flag.IntVar(&maxVotes, "max-votes", 15, "Maximum up votes per thing")
	flag.Parse()

	if submissions < 1 {
		return fmt.Errorf("--submissions must be at least 1")
	}

	var st store.Store
	var err error
	if peerURL != "" {
		st = peer.NewClient(peerURL)
	} else {
		st, err = store.NewBadgerStore(dataDir)
		if err != nil {
			return err
		}
	}
	defer st.Close()

	ctx := context.Background()
	topicList := strings.Split(topics, ",")
	now := time.Now().UnixMilli()

	for i := 0; i < submissions; i++ {
		topic := strings.TrimSpace(topicList[i%len(topicList)])
		ts := now - int64(i)*60_000

		sub := &graph.ThingRecord{
			Kind:      "submission",
			Topic:     topic,
			Title:     fmt.Sprintf("Seeded submission %d in %s", i+1, topic),
			Body:      "Seed content for local development.",
			Timestamp: ts,
		}

		batch, subID := graph.ThingGraph(sub)
		if err := st.Put(ctx, batch); err != nil {
			return fmt.Errorf("write submission: %w", err)
		}
		if err := vote(ctx, st, subID, maxVotes, ts); err != nil {
			return err
		}

		for j := 0; j < comments; j++ {
			comment := &graph.ThingRecord{
				Kind:      "comment",
				Topic:     topic,
				Body:      fmt.Sprintf("Seeded reply %d", j+1),
				OpID:      subID,
				ReplyToID: subID,
				Timestamp: ts + int64(j+1)*1000,
			}
			cBatch, cID := graph.ThingGraph(comment)
			if err := st.Put(ctx, cBatch); err != nil {
				return fmt.Errorf("write comment: %w", err)
			}
			if err := vote(ctx, st, cID, maxVotes/3, comment.Timestamp); err != nil {
				return err
			}
		}

		fmt.Printf("Seeded %s (%d comments)\n", subID, comments)
	}

	fmt.Printf("Done: %d submissions across topics %s\n", submissions, topics)
	return nil
}

func vote(ctx context.Context, st store.Store, thingID string, max int, ts int64) error {
	if max < 1 {
		return nil
	}
	n := rand.Intn(max) + 1
	nonces := make([]string, n)
	for i := range nonces {
		nonces[i] = uuid.NewString()
	}
	if err := st.Put(ctx, graph.VoteGraph(thingID, true, nonces, ts)); err != nil {
		return fmt.Errorf("write votes: %w", err)
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
