// party-store is a development stub for the upstream entity/party service and
// the question catalog. It seeds one LLC client so the engine can run a full
// business flow locally: go run ./mocks/party-store (listens on :9090).
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
)

type party struct {
	ID     string         `json:"id"`
	Type   string         `json:"partyType"`
	Roles  []string       `json:"roles"`
	Active bool           `json:"active"`
	Values map[string]any `json:"values"`
}

type response struct {
	QuestionID string   `json:"questionId"`
	Values     []string `json:"values"`
}

type client struct {
	ID           string         `json:"id"`
	Status       string         `json:"status"`
	EntityType   string         `json:"entityType"`
	Jurisdiction string         `json:"jurisdiction"`
	Products     []string       `json:"products"`
	Values       map[string]any `json:"values"`
	Parties      []party        `json:"parties"`
	Responses    []response     `json:"responses"`
	Outstanding  struct {
		QuestionIDs        []string `json:"questionIds"`
		DocumentRequestIDs []string `json:"documentRequestIds"`
	} `json:"outstanding"`
	Attestations []string `json:"attestations"`
}

type store struct {
	mu      sync.Mutex
	clients map[string]*client
	nextID  int
}

func seed() *store {
	c := &client{
		ID:           "client-1",
		Status:       "NEW",
		EntityType:   "LLC",
		Jurisdiction: "US",
		Products:     []string{"EMBEDDED_PAYMENTS"},
		Values:       map[string]any{},
	}
	c.Outstanding.QuestionIDs = []string{"30005"}
	c.Outstanding.DocumentRequestIDs = []string{"dr-1"}
	return &store{clients: map[string]*client{c.ID: c}, nextID: 1}
}

type question struct {
	ID          string   `json:"id"`
	Description string   `json:"description,omitempty"`
	Kind        string   `json:"itemType"`
	EnumValues  []string `json:"enumValues,omitempty"`
	ParentID    string   `json:"parentQuestionId,omitempty"`
	Triggers    []struct {
		AnyValues   []string `json:"anyValues"`
		QuestionIDs []string `json:"questionIds"`
	} `json:"subQuestions,omitempty"`
}

var questions = map[string]question{
	"30005": {
		ID:          "30005",
		Description: "Does the business handle customer funds?",
		Kind:        "BOOLEAN",
		Triggers: []struct {
			AnyValues   []string `json:"anyValues"`
			QuestionIDs []string `json:"questionIds"`
		}{{AnyValues: []string{"true"}, QuestionIDs: []string{"30006"}}},
	},
	"30006": {
		ID:          "30006",
		Description: "Describe how customer funds are held",
		Kind:        "STRING",
		ParentID:    "30005",
	},
}

func main() {
	s := seed()
	mux := http.NewServeMux()

	mux.HandleFunc("GET /clients/{id}", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		c, ok := s.clients[r.PathValue("id")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, c)
	})

	mux.HandleFunc("PATCH /clients/{id}/values", func(w http.ResponseWriter, r *http.Request) {
		var values map[string]any
		if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		c, ok := s.clients[r.PathValue("id")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		for k, v := range values {
			c.Values[k] = v
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /clients/{id}/parties", func(w http.ResponseWriter, r *http.Request) {
		var p party
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		c, ok := s.clients[r.PathValue("id")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if p.ID == "" {
			s.nextID++
			p.ID = fmt.Sprintf("p-%d", s.nextID)
		}
		if p.Values == nil {
			p.Values = map[string]any{}
		}
		c.Parties = append(c.Parties, p)
		writeJSON(w, p)
	})

	mux.HandleFunc("PUT /clients/{id}/parties/{partyID}", func(w http.ResponseWriter, r *http.Request) {
		var p party
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		c, ok := s.clients[r.PathValue("id")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		for i := range c.Parties {
			if c.Parties[i].ID == r.PathValue("partyID") {
				p.ID = c.Parties[i].ID
				c.Parties[i] = p
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		http.NotFound(w, r)
	})

	mux.HandleFunc("PUT /clients/{id}/responses", func(w http.ResponseWriter, r *http.Request) {
		var incoming []response
		if err := json.NewDecoder(r.Body).Decode(&incoming); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		c, ok := s.clients[r.PathValue("id")]
		if !ok {
			http.NotFound(w, r)
			return
		}
	next:
		for _, in := range incoming {
			for i := range c.Responses {
				if c.Responses[i].QuestionID == in.QuestionID {
					c.Responses[i] = in
					continue next
				}
			}
			c.Responses = append(c.Responses, in)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("PUT /clients/{id}/attestations", func(w http.ResponseWriter, r *http.Request) {
		var attestations []string
		if err := json.NewDecoder(r.Body).Decode(&attestations); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		c, ok := s.clients[r.PathValue("id")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		c.Attestations = attestations
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /questions", func(w http.ResponseWriter, r *http.Request) {
		var out []question
		for _, id := range splitIDs(r.URL.Query().Get("ids")) {
			q, ok := questions[id]
			if !ok {
				http.NotFound(w, r)
				return
			}
			out = append(out, q)
		}
		writeJSON(w, out)
	})

	log.Println("party-store mock listening on :9090")
	log.Fatal(http.ListenAndServe(":9090", mux))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func splitIDs(raw string) []string {
	var out []string
	for _, id := range strings.Split(raw, ",") {
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}
