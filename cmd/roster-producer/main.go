package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/IBM/sarama"

	"github.com/team-balancer/internal/domain"
	"github.com/team-balancer/internal/kafka"
)

// simulator keeps a local view of each match roster so that "left" events
// only name users that actually joined.
type simulator struct {
	rng     *rand.Rand
	matches []int64
	users   int64
	rosters map[int64]map[int64]bool
}

func newSimulator(matches []int64, users int64) *simulator {
	rosters := make(map[int64]map[int64]bool, len(matches))
	for _, id := range matches {
		rosters[id] = make(map[int64]bool)
	}
	return &simulator{
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		matches: matches,
		users:   users,
		rosters: rosters,
	}
}

func (s *simulator) next() domain.RosterEvent {
	matchID := s.matches[s.rng.Intn(len(s.matches))]
	roster := s.rosters[matchID]
	event := domain.RosterEvent{MatchID: matchID, Timestamp: time.Now().UTC()}

	// Joins dominate; leaves only come from players already on the roster
	if len(roster) > 0 && s.rng.Intn(4) == 0 {
		for userID := range roster {
			event.Type = domain.RosterEventLeft
			event.UserID = userID
			delete(roster, userID)
			event.ConfirmedCount = s.count(matchID)
			return event
		}
	}

	if s.rng.Intn(50) == 0 {
		event.Type = domain.RosterEventStartingSoon
		return event
	}

	userID := s.rng.Int63n(s.users) + 1
	event.Type = domain.RosterEventJoined
	event.UserID = userID
	roster[userID] = true
	event.ConfirmedCount = s.count(matchID)
	return event
}

func (s *simulator) count(matchID int64) *int {
	n := len(s.rosters[matchID])
	return &n
}

func parseMatches(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		var id int64
		if _, err := fmt.Sscan(strings.TrimSpace(part), &id); err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid match id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func main() {
	brokers := flag.String("brokers", "localhost:9094", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "match-roster-events", "Kafka topic")
	matchList := flag.String("matches", "1", "Match ids to simulate (comma-separated)")
	users := flag.Int64("users", 40, "Number of distinct users joining")
	rate := flag.Int("rate", 5, "Events per second")
	duration := flag.Duration("duration", 0, "Duration to run (0 = forever)")
	cancelAtEnd := flag.Bool("cancel", false, "Send match_cancelled for every match on exit")
	flag.Parse()

	matches, err := parseMatches(*matchList)
	if err != nil {
		log.Fatalf("Bad -matches: %v", err)
	}
	if *rate <= 0 || *users <= 0 {
		log.Fatalf("-rate and -users must be positive")
	}

	fmt.Printf("Roster producer: brokers=%s topic=%s matches=%v rate=%d/s\n", *brokers, *topic, matches, *rate)

	producer, err := sarama.NewSyncProducer(strings.Split(*brokers, ","), kafka.NewProducerConfig())
	if err != nil {
		log.Fatalf("Failed to create producer: %v", err)
	}
	publisher := kafka.NewPublisher(producer, *topic)
	defer publisher.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(time.Second / time.Duration(*rate))
	defer ticker.Stop()

	var deadline <-chan time.Time
	if *duration > 0 {
		deadline = time.After(*duration)
	}

	sim := newSimulator(matches, *users)
	var sent, failed int

loop:
	for {
		select {
		case <-sigChan:
			fmt.Println("\nShutting down...")
			break loop
		case <-deadline:
			fmt.Println("\nDuration reached, shutting down...")
			break loop
		case <-ticker.C:
			event := sim.next()
			if err := publisher.Publish(event); err != nil {
				failed++
				log.Printf("Publish error: %v", err)
				continue
			}
			sent++
			fmt.Printf("\r  Sent: %d  Errors: %d  Last: %s match=%d user=%d   ",
				sent, failed, event.Type, event.MatchID, event.UserID)
		}
	}

	if *cancelAtEnd {
		for _, id := range matches {
			event := domain.RosterEvent{Type: domain.RosterEventCancelled, MatchID: id, Timestamp: time.Now().UTC()}
			if err := publisher.Publish(event); err != nil {
				log.Printf("Publish error: %v", err)
			}
		}
	}

	fmt.Printf("\nCompleted. Sent: %d, Errors: %d\n", sent, failed)
}
