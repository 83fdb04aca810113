// Command reporter submits one signed observation to a tracker.
//
// A reporter's identity is its Ed25519 signing key; the hex public key is
// the principal the coordinator authorizes. Run with no --signing-key to
// generate a fresh identity and print it.
//
// # Usage
//
//	go run ./cmd/reporter --tracker=http://localhost:8090 \
//	    --signing-key=<hex> --symptom=5 --exposure=2
//
//	go run ./cmd/reporter --tracker=http://localhost:8090 \
//	    --signing-key=<hex> --status
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ErnaBeer/Anonymous-Epidemic-Tracker/cmd/common"
	"github.com/ErnaBeer/Anonymous-Epidemic-Tracker/services"
)

func main() {
	var (
		trackerURL    = flag.String("tracker", "", "Tracker URL")
		signingKeyHex = flag.String("signing-key", "", "Ed25519 signing key (hex, generates if empty)")
		symptom       = flag.Uint64("symptom", 0, "Symptom score (0-10)")
		exposure      = flag.Uint64("exposure", 0, "Exposure score (0-5)")
		status        = flag.Bool("status", false, "Only query submission status")
		summary       = flag.Bool("summary", false, "Only fetch the current period summary")
	)
	flag.Parse()

	if *trackerURL == "" {
		fmt.Println("Error: --tracker is required")
		os.Exit(1)
	}

	signingKey, err := common.LoadOrGenerateSigningKey(*signingKeyHex)
	if err != nil {
		fmt.Printf("Signing key error: %v\n", err)
		os.Exit(1)
	}

	client := services.NewReporterClient(*trackerURL, signingKey)
	principal, err := client.Principal()
	if err != nil {
		fmt.Printf("Key error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Reporter principal: %s\n", principal)

	switch {
	case *summary:
		s, err := client.CurrentSummary()
		if err != nil {
			fmt.Printf("Summary error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Period %d: status=%s active=%v participants=%d\n",
			s.ID, s.Status, s.Active, s.ParticipantCount)
		if s.SymptomTotal != nil {
			fmt.Printf("Aggregates: symptom=%d exposure=%d\n", *s.SymptomTotal, *s.ExposureTotal)
		}

	case *status:
		st, err := client.SubmissionStatus()
		if err != nil {
			fmt.Printf("Status error: %v\n", err)
			os.Exit(1)
		}
		if st.Submitted {
			fmt.Printf("Submitted to period %d at %s\n", st.PeriodID, st.SubmittedAt)
		} else {
			fmt.Printf("No submission in period %d\n", st.PeriodID)
		}

	default:
		resp, err := client.Submit(*symptom, *exposure)
		if err != nil {
			fmt.Printf("Submit error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Observation accepted for period %d\n", resp.PeriodID)
	}
}
