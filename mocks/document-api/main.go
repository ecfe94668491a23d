// document-api is a development stub for the upstream document service. It
// seeds one request matching the party-store mock's client-1 fixture:
// go run ./mocks/document-api (listens on :9091).
package main

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
)

type requirement struct {
	AcceptedTypes []string `json:"acceptedTypes"`
	MinRequired   int      `json:"minRequired"`
}

type request struct {
	ID           string        `json:"id"`
	PartyID      string        `json:"partyId"`
	Requirements []requirement `json:"requirements"`
}

var requests = map[string]request{
	"dr-1": {
		ID:      "dr-1",
		PartyID: "p-1",
		Requirements: []requirement{
			{AcceptedTypes: []string{"PASSPORT", "DRIVERS_LICENSE"}, MinRequired: 1},
			{AcceptedTypes: []string{"PROOF_OF_ADDRESS"}, MinRequired: 1},
		},
	},
}

func main() {
	var mu sync.Mutex
	uploads := map[string]int{}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /document-requests", func(w http.ResponseWriter, r *http.Request) {
		var out []request
		for _, id := range strings.Split(r.URL.Query().Get("ids"), ",") {
			req, ok := requests[id]
			if !ok {
				http.NotFound(w, r)
				return
			}
			out = append(out, req)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	})

	mux.HandleFunc("POST /document-requests/{id}/documents", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requests[r.PathValue("id")]; !ok {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "file is required", http.StatusBadRequest)
			return
		}
		file.Close()

		mu.Lock()
		uploads[r.PathValue("id")]++
		mu.Unlock()
		log.Printf("received %s (%s) for %s",
			header.Filename, r.FormValue("documentType"), r.PathValue("id"))
		w.WriteHeader(http.StatusCreated)
	})

	mux.HandleFunc("POST /document-requests/{id}/submit", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requests[r.PathValue("id")]; !ok {
			http.NotFound(w, r)
			return
		}
		mu.Lock()
		count := uploads[r.PathValue("id")]
		mu.Unlock()
		log.Printf("request %s submitted with %d uploads", r.PathValue("id"), count)
		w.WriteHeader(http.StatusOK)
	})

	log.Println("document-api mock listening on :9091")
	log.Fatal(http.ListenAndServe(":9091", mux))
}
