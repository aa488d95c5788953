package main

import (
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/atomic"
)

const (
	baseURL      = "http://127.0.0.1:18090"
	numWorkers   = 50
	testDuration = 10 * time.Second
	maxSongID    = 5000
	maxArtistID  = 800
)

var (
	songTypes   = []string{"ORIGINAL", "REMIX", "COVER", "OTHER"}
	sourceTypes = []string{"YOUTUBE", "NICONICO", "BILIBILI"}
	orders      = []string{"VIEWS", "PUBLISH_DATE", "ADDITION_DATE"}
)

var httpClient = &http.Client{
	Timeout: 10 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        200,
		MaxIdleConnsPerHost: 200,
		IdleConnTimeout:     30 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   2 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	},
}

type result struct {
	endpoint string
	status   int
	latency  time.Duration
	err      bool
}

type stats struct {
	count     int64
	errors    int64
	latencies []time.Duration
}

func main() {
	fmt.Println("=== VocaRank Load Test ===")
	fmt.Printf("Workers: %d | Duration: %s\n\n", numWorkers, testDuration)

	fmt.Print("Waiting for server... ")
	for i := 0; i < 30; i++ {
		resp, err := httpClient.Get(baseURL + "/health")
		if err == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			break
		}
		if i == 29 {
			fmt.Println("FAILED: server not responding")
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	fmt.Println("OK")

	// Phase 1: every request is a fresh filter combination
	fmt.Println("\n--- Phase 1: Cold queries (random filters) ---")
	runPhase(testDuration, func(rng *rand.Rand) result {
		r := rng.Float64()
		switch {
		case r < 0.50:
			return get("GET /rankings/songs", "/rankings/songs", randomSongFilters(rng))
		case r < 0.75:
			return get("GET /rankings/artists", "/rankings/artists", randomArtistFilters(rng))
		case r < 0.90:
			return get("GET /views/history", "/views/history", historyQuery(rng))
		default:
			return get("GET /songs", "/songs", url.Values{"id": {strconv.Itoa(rng.Intn(maxSongID) + 1)}})
		}
	})

	// Phase 2: the handful of pages a front page asks for
	fmt.Println("\n--- Phase 2: Hot queries (cached pages) ---")
	hot := []url.Values{
		{},
		{"timePeriodOffset": {"1"}, "changeOffset": {"1"}},
		{"timePeriodOffset": {"7"}},
		{"includeSongTypes": {"ORIGINAL"}},
	}
	runPhase(testDuration, func(rng *rand.Rand) result {
		if rng.Float64() < 0.8 {
			return get("GET /rankings/songs", "/rankings/songs", hot[rng.Intn(len(hot))])
		}
		return get("GET /rankings/artists", "/rankings/artists", url.Values{"combineSimilarArtists": {"true"}})
	})
}

func randomSongFilters(rng *rand.Rand) url.Values {
	q := url.Values{}
	q.Set("timePeriodOffset", strconv.Itoa(rng.Intn(30)))
	if rng.Float64() < 0.3 {
		q.Set("changeOffset", "1")
	}
	if rng.Float64() < 0.4 {
		q.Set("includeSongTypes", pick(rng, songTypes, 2))
	}
	if rng.Float64() < 0.3 {
		q.Set("includeSourceTypes", pick(rng, sourceTypes, 1))
	}
	if rng.Float64() < 0.2 {
		q.Set("includeArtists", strconv.Itoa(rng.Intn(maxArtistID)+1))
		q.Set("includeSimilarArtists", "true")
	}
	if rng.Float64() < 0.2 {
		q.Set("publishDate", strconv.Itoa(2008+rng.Intn(17)))
	}
	q.Set("orderBy", orders[rng.Intn(len(orders))])
	q.Set("startAt", strconv.Itoa(rng.Intn(5)*50))
	return q
}

func randomArtistFilters(rng *rand.Rand) url.Values {
	q := randomSongFilters(rng)
	q.Del("includeSimilarArtists")
	if rng.Float64() < 0.5 {
		q.Set("artistCategory", "PRODUCER")
	} else {
		q.Set("artistCategory", "VOCALIST")
	}
	if rng.Float64() < 0.3 {
		q.Set("combineSimilarArtists", "true")
	}
	return q
}

func historyQuery(rng *rand.Rand) url.Values {
	q := url.Values{"range": {"30"}, "period": {strconv.Itoa(rng.Intn(7) + 1)}}
	if rng.Float64() < 0.5 {
		q.Set("entity", "artist")
		q.Set("id", strconv.Itoa(rng.Intn(maxArtistID)+1))
	} else {
		q.Set("id", strconv.Itoa(rng.Intn(maxSongID)+1))
	}
	return q
}

func pick(rng *rand.Rand, from []string, n int) string {
	out := make([]string, 0, n)
	for _, i := range rng.Perm(len(from))[:n] {
		out = append(out, from[i])
	}
	return strings.Join(out, ",")
}

func get(endpoint, path string, q url.Values) result {
	target := baseURL + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	start := time.Now()
	resp, err := httpClient.Get(target)
	lat := time.Since(start)
	if err != nil {
		return result{endpoint, 0, lat, true}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	// unknown ids are a normal answer
	ok := resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNotFound
	return result{endpoint, resp.StatusCode, lat, !ok}
}

func runPhase(duration time.Duration, workFn func(rng *rand.Rand) result) {
	results := make(chan result, 10000)
	var wg sync.WaitGroup
	var totalOps atomic.Int64
	stop := make(chan struct{})

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for {
				select {
				case <-stop:
					return
				default:
					results <- workFn(rng)
					totalOps.Inc()
				}
			}
		}(rand.Int63() + int64(i))
	}

	allResults := make(map[string]*stats)
	done := make(chan struct{})
	go func() {
		for r := range results {
			s, ok := allResults[r.endpoint]
			if !ok {
				s = &stats{}
				allResults[r.endpoint] = s
			}
			s.count++
			if r.err {
				s.errors++
			}
			s.latencies = append(s.latencies, r.latency)
		}
		close(done)
	}()

	time.Sleep(duration)
	close(stop)
	wg.Wait()
	close(results)
	<-done

	printResults(allResults, duration)
}

func printResults(allResults map[string]*stats, duration time.Duration) {
	var totalOps int64
	var totalErrors int64

	endpoints := make([]string, 0, len(allResults))
	for ep := range allResults {
		endpoints = append(endpoints, ep)
	}
	sort.Strings(endpoints)

	fmt.Printf("\n  %-24s %8s %6s %10s %10s %10s %10s\n",
		"Endpoint", "Reqs", "Errs", "Avg", "P50", "P95", "P99")
	fmt.Println("  " + strings.Repeat("-", 90))

	for _, ep := range endpoints {
		s := allResults[ep]
		totalOps += s.count
		totalErrors += s.errors

		sort.Slice(s.latencies, func(i, j int) bool {
			return s.latencies[i] < s.latencies[j]
		})

		fmt.Printf("  %-24s %8d %6d %10s %10s %10s %10s\n",
			ep, s.count, s.errors,
			fmtDur(avgDuration(s.latencies)),
			fmtDur(percentile(s.latencies, 0.50)),
			fmtDur(percentile(s.latencies, 0.95)),
			fmtDur(percentile(s.latencies, 0.99)))
	}

	if totalOps == 0 {
		fmt.Println("  no requests completed")
		return
	}
	rps := float64(totalOps) / duration.Seconds()
	fmt.Println("  " + strings.Repeat("-", 90))
	fmt.Printf("  Total: %d reqs | Errors: %d (%.1f%%) | RPS: %.0f\n",
		totalOps, totalErrors, float64(totalErrors)/float64(totalOps)*100, rps)
}

func avgDuration(d []time.Duration) time.Duration {
	if len(d) == 0 {
		return 0
	}
	var sum time.Duration
	for _, v := range d {
		sum += v
	}
	return sum / time.Duration(len(d))
}

func percentile(d []time.Duration, p float64) time.Duration {
	if len(d) == 0 {
		return 0
	}
	idx := int(float64(len(d)) * p)
	if idx >= len(d) {
		idx = len(d) - 1
	}
	return d[idx]
}

func fmtDur(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dus", d.Microseconds())
	}
	return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000.0)
}
