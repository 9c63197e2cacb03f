package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
)

// LoadTestConfig holds configuration for load testing
type LoadTestConfig struct {
	BaseURL         string
	CourseID        string
	Occurrences     int
	ConcurrentUsers int
	RequestsPerUser int
	Capacity        int
}

// bookingSubmission represents the booking API request body
type bookingSubmission struct {
	CourseID         string `json:"course_id"`
	OccurrenceChoice string `json:"occurrence_choice"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	BookingToken     string `json:"booking_token"`
}

// LoadTestResult holds the results of load testing
type LoadTestResult struct {
	TotalRequests     int
	SuccessfulReqs    int
	SoldOutReqs       int
	FailedReqs        int
	AvgResponseTimeMs float64
	MaxResponseTimeMs int64
	MinResponseTimeMs int64
	ThroughputRPS     float64
	ErrorsByType      map[string]int
}

// LoadTester drives concurrent booking submissions against the API
type LoadTester struct {
	config    LoadTestConfig
	client    *http.Client
	results   LoadTestResult
	mutex     sync.Mutex
	startTime time.Time
}

// NewLoadTester creates a new load tester
func NewLoadTester(config LoadTestConfig) *LoadTester {
	return &LoadTester{
		config: config,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		results: LoadTestResult{
			ErrorsByType: make(map[string]int),
		},
	}
}

// RunLoadTest executes the load test
func (lt *LoadTester) RunLoadTest() {
	fmt.Printf("Starting load test with %d concurrent users against course %s...\n",
		lt.config.ConcurrentUsers, lt.config.CourseID)

	lt.startTime = time.Now()
	var wg sync.WaitGroup

	semaphore := make(chan struct{}, lt.config.ConcurrentUsers)
	totalRequests := lt.config.ConcurrentUsers * lt.config.RequestsPerUser

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)

		go func(requestID int) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			lt.simulateBooking(requestID)
		}(i)

		// Small delay between request starts to simulate realistic user behavior
		time.Sleep(10 * time.Millisecond)
	}

	wg.Wait()

	lt.calculateMetrics()
	lt.printResults()
}

// simulateBooking performs one full booking interaction: fetch a form
// token, then submit with it.
func (lt *LoadTester) simulateBooking(requestID int) {
	startTime := time.Now()

	token, err := lt.fetchToken()
	if err != nil {
		lt.recordError("token_fetch")
		return
	}

	submission := bookingSubmission{
		CourseID:         lt.config.CourseID,
		OccurrenceChoice: fmt.Sprintf("%d", requestID%lt.config.Occurrences),
		FirstName:        "Load",
		LastName:         fmt.Sprintf("Tester%d", requestID),
		Email:            fmt.Sprintf("loadtest%d@example.com", requestID),
		Phone:            "000000000",
		BookingToken:     token,
	}

	jsonData, err := json.Marshal(submission)
	if err != nil {
		lt.recordError("json_marshal")
		return
	}

	url := fmt.Sprintf("%s/api/v1/bookings", lt.config.BaseURL)
	resp, err := lt.client.Post(url, "application/json", bytes.NewBuffer(jsonData))

	responseTime := time.Since(startTime)

	if err != nil {
		lt.recordError("http_request")
		return
	}
	defer resp.Body.Close()

	lt.recordResponse(resp.StatusCode, responseTime)
}

func (lt *LoadTester) fetchToken() (string, error) {
	resp, err := lt.client.Get(fmt.Sprintf("%s/api/v1/bookings/token", lt.config.BaseURL))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var body struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	if body.Data.Token == "" {
		return "", fmt.Errorf("empty token in response")
	}
	return body.Data.Token, nil
}

// recordResponse records the response metrics
func (lt *LoadTester) recordResponse(statusCode int, responseTime time.Duration) {
	lt.mutex.Lock()
	defer lt.mutex.Unlock()

	lt.results.TotalRequests++
	responseTimeMs := responseTime.Milliseconds()

	if lt.results.MaxResponseTimeMs < responseTimeMs {
		lt.results.MaxResponseTimeMs = responseTimeMs
	}

	if lt.results.MinResponseTimeMs == 0 || lt.results.MinResponseTimeMs > responseTimeMs {
		lt.results.MinResponseTimeMs = responseTimeMs
	}

	currentAvg := lt.results.AvgResponseTimeMs
	currentCount := float64(lt.results.TotalRequests)
	lt.results.AvgResponseTimeMs = (currentAvg*(currentCount-1) + float64(responseTimeMs)) / currentCount

	switch {
	case statusCode >= 200 && statusCode < 300:
		lt.results.SuccessfulReqs++
	case statusCode == 409:
		lt.results.SoldOutReqs++
	default:
		lt.results.FailedReqs++
		lt.results.ErrorsByType[fmt.Sprintf("http_%d", statusCode)]++
	}
}

// recordError records an error that occurred during testing
func (lt *LoadTester) recordError(errorType string) {
	lt.mutex.Lock()
	defer lt.mutex.Unlock()

	lt.results.TotalRequests++
	lt.results.FailedReqs++
	lt.results.ErrorsByType[errorType]++
}

// calculateMetrics calculates final test metrics
func (lt *LoadTester) calculateMetrics() {
	totalDuration := time.Since(lt.startTime)
	lt.results.ThroughputRPS = float64(lt.results.TotalRequests) / totalDuration.Seconds()
}

// printResults displays the load test results
func (lt *LoadTester) printResults() {
	fmt.Println("\n" + strings.Repeat("=", 80))

	fmt.Printf("Test Configuration:\n")
	fmt.Printf("  - Concurrent Users: %d\n", lt.config.ConcurrentUsers)
	fmt.Printf("  - Requests per User: %d\n", lt.config.RequestsPerUser)
	fmt.Printf("  - Occurrences: %d\n", lt.config.Occurrences)
	fmt.Printf("  - Capacity per Occurrence: %d seats\n", lt.config.Capacity)

	fmt.Printf("\nOverall Performance:\n")
	fmt.Printf("  - Total Requests: %d\n", lt.results.TotalRequests)
	fmt.Printf("  - Successful: %d (%.2f%%)\n",
		lt.results.SuccessfulReqs,
		float64(lt.results.SuccessfulReqs)/float64(lt.results.TotalRequests)*100)
	fmt.Printf("  - Sold Out: %d (%.2f%%)\n",
		lt.results.SoldOutReqs,
		float64(lt.results.SoldOutReqs)/float64(lt.results.TotalRequests)*100)
	fmt.Printf("  - Failed: %d (%.2f%%)\n",
		lt.results.FailedReqs,
		float64(lt.results.FailedReqs)/float64(lt.results.TotalRequests)*100)

	fmt.Printf("\nResponse Time Metrics:\n")
	fmt.Printf("  - Average: %.2f ms\n", lt.results.AvgResponseTimeMs)
	fmt.Printf("  - Minimum: %d ms\n", lt.results.MinResponseTimeMs)
	fmt.Printf("  - Maximum: %d ms\n", lt.results.MaxResponseTimeMs)

	fmt.Printf("\nThroughput:\n")
	fmt.Printf("  - Requests per Second: %.2f\n", lt.results.ThroughputRPS)

	if len(lt.results.ErrorsByType) > 0 {
		fmt.Printf("\nError Breakdown:\n")
		for errorType, count := range lt.results.ErrorsByType {
			fmt.Printf("  - %s: %d\n", errorType, count)
		}
	}

	// Oversell analysis: accepted bookings must never exceed the total
	// seats on offer.
	totalSeats := lt.config.Occurrences * lt.config.Capacity
	fmt.Printf("\nSeat Accounting:\n")
	fmt.Printf("  - Total Available Seats: %d\n", totalSeats)
	fmt.Printf("  - Accepted Bookings: %d\n", lt.results.SuccessfulReqs)
	if lt.results.SuccessfulReqs > totalSeats {
		fmt.Printf("  OVERSELL DETECTED: %d bookings over capacity\n", lt.results.SuccessfulReqs-totalSeats)
	} else {
		fmt.Printf("  No oversell: accepted bookings within capacity\n")
	}
}

// loadtestCmd represents the loadtest command
var loadtestCmd = &cobra.Command{
	Use:   "loadtest",
	Short: "Run load tests against the Course Booking API",
	Long: `Run load tests against the Course Booking API.
This includes:
- Concurrent booking submission simulation
- Sold-out contention analysis
- Oversell detection against the configured capacity
- Throughput and response time metrics`,
	Run: func(cmd *cobra.Command, args []string) {
		runLoadTest()
	},
}

var (
	baseURL         string
	targetCourseID  string
	numOccurrences  int
	concurrentUsers int
	requestsPerUser int
	seatCapacity    int
)

func init() {
	rootCmd.AddCommand(loadtestCmd)

	loadtestCmd.Flags().StringVar(&baseURL, "url", "http://localhost:8080", "Base URL of the booking API")
	loadtestCmd.Flags().StringVar(&targetCourseID, "course", "", "Course ID to book against (required)")
	loadtestCmd.Flags().IntVar(&numOccurrences, "occurrences", 3, "Number of occurrences on the target course")
	loadtestCmd.Flags().IntVar(&concurrentUsers, "concurrent", 50, "Number of concurrent users")
	loadtestCmd.Flags().IntVar(&requestsPerUser, "requests", 5, "Number of requests per user")
	loadtestCmd.Flags().IntVar(&seatCapacity, "capacity", 30, "Capacity per occurrence, for oversell analysis")
	loadtestCmd.MarkFlagRequired("course")
}

func runLoadTest() {
	config := LoadTestConfig{
		BaseURL:         baseURL,
		CourseID:        targetCourseID,
		Occurrences:     numOccurrences,
		ConcurrentUsers: concurrentUsers,
		RequestsPerUser: requestsPerUser,
		Capacity:        seatCapacity,
	}

	loadTester := NewLoadTester(config)

	fmt.Println("Course Booking System Load Test")
	fmt.Println("===============================")

	loadTester.RunLoadTest()
}
