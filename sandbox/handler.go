package sandbox

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/isdmx/aocd/source"
)

// Username is the Basic-Auth user the child authenticates as.
const Username = "sandbox"

const maxBodyBytes = 1 << 20

type handler struct {
	source        source.Source
	password      string
	submitEnabled bool
	logger        *zap.Logger
}

// NewHandler returns the loopback API served to the sandboxed child.
//
// Every request must carry Basic-Auth credentials for Username and password.
// GET /getInput?year=&day= returns the puzzle input as text; POST /submit
// takes {"year","day","part","solution"} and returns {"correct":bool}, and is
// forbidden unless submitEnabled is set.
func NewHandler(src source.Source, password string, submitEnabled bool, logger *zap.Logger) http.Handler {
	h := &handler{
		source:        src,
		password:      password,
		submitEnabled: submitEnabled,
		logger:        logger,
	}

	r := mux.NewRouter()
	r.HandleFunc("/getInput", h.getInput)
	r.HandleFunc("/submit", h.submit)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "Not found", http.StatusNotFound)
	})

	return h.recoverPanics(h.authenticate(r))
}

func (h *handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(user), []byte(Username)) != 1 ||
			subtle.ConstantTimeCompare([]byte(pass), []byte(h.password)) != 1 {
			h.logger.Warn("Rejected unauthenticated sandbox request", zap.String("path", r.URL.Path))
			w.Header().Set("WWW-Authenticate", `Basic realm="sandbox"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *handler) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.logger.Error("Sandbox request panicked", zap.String("path", r.URL.Path), zap.Any("panic", rec))
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (h *handler) getInput(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, yearErr := strconv.Atoi(q.Get("year"))
	day, dayErr := strconv.Atoi(q.Get("day"))
	if yearErr != nil || dayErr != nil {
		http.Error(w, "Invalid query", http.StatusBadRequest)
		return
	}

	input, err := h.source.Input(r.Context(), year, day)
	if err != nil {
		h.logger.Error("Failed to get input for sandbox", zap.Int("year", year), zap.Int("day", day), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(input))
}

type submitBody struct {
	Year     *int           `json:"year"`
	Day      *int           `json:"day"`
	Part     *int           `json:"part"`
	Solution *source.Answer `json:"solution"`
}

func (h *handler) submit(w http.ResponseWriter, r *http.Request) {
	if !h.submitEnabled {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	var body submitBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil ||
		body.Year == nil || body.Day == nil || body.Part == nil ||
		body.Solution == nil || body.Solution.IsZero() {
		http.Error(w, "Invalid body", http.StatusBadRequest)
		return
	}

	correct, err := h.source.Submit(r.Context(), *body.Year, *body.Day, *body.Part, *body.Solution)
	if err != nil {
		h.logger.Error("Failed to submit answer for sandbox",
			zap.Int("year", *body.Year), zap.Int("day", *body.Day), zap.Int("part", *body.Part), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(source.SubmitResponse{Correct: correct})
}
