package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/isdmx/aocd/config"
	"github.com/isdmx/aocd/lazy"
	"github.com/isdmx/aocd/store"
)

// Store is the persistence the Direct provider needs.
type Store interface {
	Session(ctx context.Context) (string, error)
	SetSession(ctx context.Context, session string) error
	Input(ctx context.Context, year, day int) (string, error)
	SetInput(ctx context.Context, year, day int, input string) error
	SentSolution(ctx context.Context, year, day, part int, solution string) (store.SentSolution, error)
	SetSentSolution(ctx context.Context, year, day, part int, solution string, correct bool) error
	ClearData(ctx context.Context) error
}

// Direct talks to the puzzle site, caching inputs and submissions in a Store.
type Direct struct {
	logger     *zap.Logger
	store      Store
	client     *http.Client
	baseURL    string
	userAgent  string
	sessionEnv string
	inputFile  string
	getenv     func(string) string
	fs         afero.Fs

	session     *lazy.Value[string]
	inputFileV  *lazy.Value[string]
	inputs      *lazy.Map[PuzzleKey, string]
	problems    *lazy.Map[PuzzleKey, []byte]
	submissions *lazy.Map[submission, bool]
}

type submission struct {
	PartKey
	Answer Answer
}

// DirectOption defines a functional option for Direct
type DirectOption func(*Direct)

// WithHTTPClient sets the HTTP client used to reach the site
func WithHTTPClient(client *http.Client) DirectOption {
	return func(d *Direct) {
		d.client = client
	}
}

// WithBaseURL points the provider at a different site root
func WithBaseURL(baseURL string) DirectOption {
	return func(d *Direct) {
		d.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithUserAgent sets the User-Agent header sent to the site
func WithUserAgent(userAgent string) DirectOption {
	return func(d *Direct) {
		d.userAgent = userAgent
	}
}

// WithSessionEnvVar sets the environment variable consulted for the session cookie
func WithSessionEnvVar(name string) DirectOption {
	return func(d *Direct) {
		d.sessionEnv = name
	}
}

// WithGetenv replaces os.Getenv for session lookup
func WithGetenv(getenv func(string) string) DirectOption {
	return func(d *Direct) {
		d.getenv = getenv
	}
}

// WithInputFile makes every Input call return the contents of path
func WithInputFile(path string) DirectOption {
	return func(d *Direct) {
		d.inputFile = path
	}
}

// WithFileSystem sets the file system the input file is read from
func WithFileSystem(fs afero.Fs) DirectOption {
	return func(d *Direct) {
		d.fs = fs
	}
}

// NewDirect creates a Direct provider with default settings and optional overrides
func NewDirect(logger *zap.Logger, st Store, opts ...DirectOption) *Direct {
	d := &Direct{
		logger:     logger,
		store:      st,
		client:     http.DefaultClient,
		baseURL:    "https://adventofcode.com",
		userAgent:  "github.com/isdmx/aocd",
		sessionEnv: "AOC_SESSION",
		getenv:     os.Getenv,
		fs:         afero.NewOsFs(),
	}

	for _, opt := range opts {
		opt(d)
	}

	d.session = lazy.NewValue(d.loadSession)
	d.inputFileV = lazy.NewValue(d.readInputFile)
	d.inputs = lazy.NewMap(d.loadInput)
	d.problems = lazy.NewMap(d.fetchProblem)
	d.submissions = lazy.NewMap(d.submit)
	return d
}

// NewDirectFromConfig creates a Direct provider from the application configuration
func NewDirectFromConfig(cfg *config.Config, logger *zap.Logger, st *store.Store) *Direct {
	return NewDirect(logger, st,
		WithHTTPClient(&http.Client{Timeout: cfg.GetTimeout()}),
		WithBaseURL(cfg.Site.BaseURL),
		WithUserAgent(cfg.Site.UserAgent),
		WithSessionEnvVar(cfg.Session.EnvVar),
		WithInputFile(cfg.Session.InputFile),
	)
}

func (d *Direct) loadSession(ctx context.Context) (string, error) {
	if d.sessionEnv != "" {
		if session := d.getenv(d.sessionEnv); session != "" {
			return session, nil
		}
	}

	session, err := d.store.Session(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("%w: set the %s environment variable or run `aocd set-cookie COOKIE`", ErrNoSession, d.sessionEnv)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read session cookie: %w", err)
	}
	return session, nil
}

// SetSession stores the session cookie for later runs.
func (d *Direct) SetSession(ctx context.Context, session string) error {
	if err := d.store.SetSession(ctx, session); err != nil {
		return err
	}
	d.session.Reset()
	return nil
}

// ClearData forgets the session cookie and everything cached.
func (d *Direct) ClearData(ctx context.Context) error {
	if err := d.store.ClearData(ctx); err != nil {
		return err
	}
	d.session.Reset()
	d.inputs.Forget()
	d.problems.Forget()
	d.submissions.Forget()
	return nil
}

// Input returns the puzzle input, from the store when it was fetched before.
func (d *Direct) Input(ctx context.Context, year, day int) (string, error) {
	return d.inputs.Get(ctx, PuzzleKey{Year: year, Day: day})
}

func (d *Direct) loadInput(ctx context.Context, key PuzzleKey) (string, error) {
	if d.inputFile != "" {
		return d.inputFileV.Get(ctx)
	}

	input, err := d.store.Input(ctx, key.Year, key.Day)
	if err == nil {
		return input, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return "", err
	}

	inputURL := fmt.Sprintf("%s/%d/day/%d/input", d.baseURL, key.Year, key.Day)
	d.logger.Info("fetching input", zap.String("url", inputURL))
	body, err := d.do(ctx, http.MethodGet, inputURL, nil)
	if err != nil {
		return "", err
	}
	input = string(body)

	if err := d.store.SetInput(ctx, key.Year, key.Day, input); err != nil {
		return "", err
	}
	return input, nil
}

func (d *Direct) readInputFile(context.Context) (string, error) {
	data, err := afero.ReadFile(d.fs, d.inputFile)
	if err != nil {
		return "", fmt.Errorf("failed to read input file: %w", err)
	}
	return string(data), nil
}

// Submit sends answer for the given part and reports whether it is correct.
// Answers sent before are answered from the store, and once a part has a
// correct answer every other answer is known to be wrong.
func (d *Direct) Submit(ctx context.Context, year, day, part int, answer Answer) (bool, error) {
	if answer.IsZero() {
		return false, errors.New("cannot submit an empty answer")
	}
	if part != 1 && part != 2 {
		return false, fmt.Errorf("invalid part %d, must be 1 or 2", part)
	}
	return d.submissions.Get(ctx, submission{
		PartKey: PartKey{PuzzleKey: PuzzleKey{Year: year, Day: day}, Part: part},
		Answer:  answer,
	})
}

func (d *Direct) submit(ctx context.Context, s submission) (bool, error) {
	sent, err := d.store.SentSolution(ctx, s.Year, s.Day, s.Part, s.Answer.String())
	switch {
	case err == nil:
		if s.Answer.Matches(sent.Solution) {
			return sent.Correct, nil
		}
		return false, nil
	case !errors.Is(err, store.ErrNotFound):
		return false, err
	}

	correct, err := d.submitToServer(ctx, s)
	if err != nil {
		return false, err
	}

	if err := d.store.SetSentSolution(ctx, s.Year, s.Day, s.Part, s.Answer.String(), correct); err != nil {
		return false, err
	}
	return correct, nil
}

func (d *Direct) submitToServer(ctx context.Context, s submission) (bool, error) {
	answerURL := fmt.Sprintf("%s/%d/day/%d/answer", d.baseURL, s.Year, s.Day)
	d.logger.Info("submitting answer", zap.String("url", answerURL), zap.Int("part", s.Part))

	form := url.Values{
		"level":  {strconv.Itoa(s.Part)},
		"answer": {s.Answer.String()},
	}
	body, err := d.do(ctx, http.MethodPost, answerURL, form)
	if err != nil {
		return false, err
	}

	main, err := mainElement(body)
	if err != nil {
		d.logger.Error("unexpected answer response", zap.String("response", string(body)))
		return false, err
	}

	switch classifySubmitResponse(main) {
	case outcomeRight:
		return true, nil
	case outcomeWrong:
		return false, nil
	case outcomeWrongLevel:
		problem, err := d.problems.Get(ctx, s.PuzzleKey)
		if err != nil {
			return false, err
		}
		problemMain, err := mainElement(problem)
		if err != nil {
			return false, err
		}
		accepted, err := acceptedAnswer(problemMain, s.Part)
		if err != nil {
			d.logger.Error("could not find accepted answer", zap.String("response", string(body)))
			return false, err
		}
		return s.Answer.Matches(accepted), nil
	case outcomeNotLoggedIn:
		return false, ErrInvalidSession
	default:
		d.logger.Error("unrecognized answer response", zap.String("response", string(body)))
		return false, ErrUnexpectedResponse
	}
}

func (d *Direct) fetchProblem(ctx context.Context, key PuzzleKey) ([]byte, error) {
	return d.do(ctx, http.MethodGet, fmt.Sprintf("%s/%d/day/%d", d.baseURL, key.Year, key.Day), nil)
}

func (d *Direct) do(ctx context.Context, method, target string, form url.Values) ([]byte, error) {
	session, err := d.session.Get(ctx)
	if err != nil {
		return nil, err
	}

	var reqBody io.Reader
	if form != nil {
		reqBody = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.AddCookie(&http.Cookie{Name: "session", Value: session})
	req.Header.Set("User-Agent", d.userAgent)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", target, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		d.logResponseError(resp.StatusCode, body)
		return nil, &StatusError{Code: resp.StatusCode, URL: target}
	}
	return body, nil
}

func (d *Direct) logResponseError(status int, body []byte) {
	switch {
	case status == http.StatusInternalServerError:
		d.logger.Error("unknown server error, is the session cookie correct? Try setting it with `aocd set-cookie COOKIE`")
	case status == http.StatusBadRequest && strings.Contains(string(body), "Please log in"):
		d.logger.Error(ErrInvalidSession.Error())
	default:
		d.logger.Error("bad response", zap.Int("status", status), zap.String("response", string(body)))
	}
}
