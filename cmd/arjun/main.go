// Command arjun is the CLI entry point for the parameter discovery engine,
// grounded on the original tool's argument table and control flow.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/arjun-x/arjun-go/internal/config"
	"github.com/arjun-x/arjun-go/internal/engine"
	"github.com/arjun-x/arjun-go/internal/explain"
	"github.com/arjun-x/arjun-go/internal/export"
	"github.com/arjun-x/arjun-go/internal/limits"
	"github.com/arjun-x/arjun-go/internal/model"
	"github.com/arjun-x/arjun-go/internal/passive"
	"github.com/arjun-x/arjun-go/internal/progress"
	"github.com/arjun-x/arjun-go/internal/rlog"
	"github.com/arjun-x/arjun-go/internal/transport"
	"github.com/arjun-x/arjun-go/internal/wordlist"
)

type flags struct {
	url              string
	importFile       string
	jsonFile         string
	textFile         string
	htmlFile         string
	burpProxy        string
	delay            float64
	threads          int
	wordlistPath     string
	method           string
	timeout          float64
	chunks           int
	quiet            bool
	rateLimit        int
	headers          string
	passiveHost      string
	stable           bool
	include          string
	disableRedirects bool
	casing           string
	stealth          bool
	maxRequests      int
	errorStreak      int
}

func parseFlags() *flags {
	f := &flags{}
	flag.StringVar(&f.url, "u", "", "Target URL")
	flag.StringVar(&f.importFile, "i", "", "Import target URLs from file")
	flag.StringVar(&f.jsonFile, "o", "", "Path for json output file")
	flag.StringVar(&f.textFile, "oT", "", "Path for text output file")
	flag.StringVar(&f.htmlFile, "oH", "", "Path for HTML output file")
	flag.StringVar(&f.burpProxy, "oB", "", "Output to Burp Suite Proxy, e.g. 127.0.0.1:8080")
	flag.Float64Var(&f.delay, "d", 0, "Delay between requests in seconds")
	flag.IntVar(&f.threads, "t", 5, "Number of concurrent threads")
	flag.StringVar(&f.wordlistPath, "w", "medium", "Wordlist file path; small/medium/large resolve to bundled files")
	flag.StringVar(&f.method, "m", "GET", "Request method: GET/POST/JSON/XML")
	flag.Float64Var(&f.timeout, "T", 15, "HTTP request timeout in seconds")
	flag.IntVar(&f.chunks, "c", 0, "Chunk size; 0 auto-selects per method")
	flag.BoolVar(&f.quiet, "q", false, "Quiet mode")
	flag.IntVar(&f.rateLimit, "rate-limit", 9999, "Max requests per second")
	flag.StringVar(&f.headers, "headers", "", "Extra headers, newline-separated as Name: value")
	flag.StringVar(&f.passiveHost, "passive", "", "Collect parameter names from passive sources for this host ('-' resolves from -u)")
	flag.BoolVar(&f.stable, "stable", false, "Prefer stability over speed")
	flag.StringVar(&f.include, "include", "", "Body template containing $arjun$, or a fixed payload fragment")
	flag.BoolVar(&f.disableRedirects, "disable-redirects", false, "Do not follow redirects")
	flag.StringVar(&f.casing, "casing", "", "Casing style sample for params, e.g. like_this, likeThis, likethis")
	flag.BoolVar(&f.stealth, "stealth", false, "Enable stealth mode (jitter, random UA)")
	flag.IntVar(&f.maxRequests, "max-requests", 0, "Hard cap on requests issued for one target; 0 disables")
	flag.IntVar(&f.errorStreak, "max-consecutive-errors", 20, "Consecutive transport errors before a target is killed and marked skipped")
	flag.Parse()
	return f
}

func main() {
	f := parseFlags()
	rlog.Silence(f.quiet)
	ambient := config.Load()

	setFlags := map[string]bool{}
	flag.Visit(func(fl *flag.Flag) { setFlags[fl.Name] = true })
	if !setFlags["rate-limit"] {
		f.rateLimit = ambient.DefaultRateLimit
	}
	if !setFlags["T"] {
		f.timeout = ambient.DefaultTimeout.Seconds()
	}

	f.method = strings.ToUpper(f.method)
	if f.chunks == 0 {
		f.chunks = 250
		if f.method != "GET" {
			f.chunks = 500
		}
	}
	if f.stable || f.delay > 0 {
		f.threads = 1
	}

	if f.url == "" && f.importFile == "" {
		fmt.Fprintln(os.Stderr, "[!] No target(s) specified")
		os.Exit(1)
	}

	names, err := wordlist.Load(wordlist.ResolvePath(f.wordlistPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "[!] The specified wordlist file doesn't exist: %v\n", err)
		os.Exit(1)
	}

	if f.passiveHost != "" {
		host := f.passiveHost
		if host == "-" && f.url != "" {
			host = hostOf(f.url)
		}
		if host != "" && host != "-" {
			var src passive.Source = passive.NoOp{}
			found, err := src.FetchParams(context.Background(), host)
			if err != nil {
				rlog.Warn("passive collection failed for %s: %v", host, err)
			} else {
				names = append(names, found...)
			}
		} else {
			rlog.Warn("passive collection skipped: no -u target to resolve a host from")
		}
	}

	if f.casing != "" {
		if casing, ok := wordlist.DetectCasing(f.casing); ok {
			names = wordlist.RecaseAll(names, casing)
		}
	}

	if len(names) < f.chunks {
		f.chunks = len(names) / 2
		if f.chunks < 1 {
			f.chunks = 1
		}
	}

	method := model.Method(f.method)

	rc := &config.RunConfig{
		Threads:          f.threads,
		ChunkSize:        f.chunks,
		Delay:            toDuration(f.delay),
		Stable:           f.stable,
		Stealth:          f.stealth,
		RateLimit:        f.rateLimit,
		Timeout:          toDuration(f.timeout),
		DisableRedirects: f.disableRedirects,
		Include:          f.include,
	}
	rc.Normalize(f.method)

	special := loadSpecial(ambient.DefaultSpecialDB)

	var explainer *explain.Explainer
	if ambient.ExplainEnabled && ambient.ExplainAPIKey != "" {
		explainer = explain.New(context.Background(), ambient.ExplainAPIKey, ambient.ExplainModel)
	}

	progressHub := progress.NewHub()
	go progressHub.Run()

	targets := collectTargets(f)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var killed atomic.Bool
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		killed.Store(true)
		cancel()
	}()
	kill := func() bool { return killed.Load() }

	wait := transport.WaitPolicy{Stable: rc.Stable, Stealth: rc.Stealth, Delay: rc.Delay}
	client := transport.New(rc.Timeout, wait, transport.NewRateLimiter(rc.RateLimit))

	var results []model.Result
	for i, targetURL := range targets {
		rlog.Run("scanning %d/%d: %s", i+1, len(targets), targetURL)

		budget := limits.Estimate(len(names), rc.ChunkSize, 6, len(names)/10+1, 2, f.maxRequests)

		tpl := model.Template{
			URL:              targetURL,
			Method:           method,
			Headers:          parseHeaders(f.headers),
			Include:          rc.Include,
			DisableRedirects: rc.DisableRedirects,
		}

		result := engine.Run(ctx, client, tpl, engine.Options{
			Wordlist:             names,
			Special:              special,
			ChunkSize:            rc.ChunkSize,
			Threads:              rc.Threads,
			Explainer:            explainer,
			Progress:             progressHub,
			Budget:               budget,
			ErrorStreakThreshold: f.errorStreak,
		}, kill)

		results = append(results, result)
		if killed.Load() {
			break // an interrupt has also cancelled ctx, so no later target can be scanned
		}
	}

	report := export.NewReport(results)
	writeExports(report, f)
}

func hostOf(rawURL string) string {
	rawURL = strings.TrimPrefix(rawURL, "http://")
	rawURL = strings.TrimPrefix(rawURL, "https://")
	if idx := strings.Index(rawURL, "/"); idx != -1 {
		rawURL = rawURL[:idx]
	}
	return rawURL
}

func toDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

func collectTargets(f *flags) []string {
	if f.importFile == "" {
		return []string{f.url}
	}
	file, err := os.Open(f.importFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[!] Could not open import file: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	var urls []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			urls = append(urls, line)
		}
	}
	return urls
}

func parseHeaders(raw string) map[string]string {
	headers := map[string]string{}
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		headers[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return headers
}

func loadSpecial(path string) map[string]string {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	special := map[string]string{}
	if err := json.Unmarshal(raw, &special); err != nil {
		rlog.Warn("failed to parse special params file %s: %v", path, err)
		return nil
	}
	return special
}

func writeExports(report export.Report, f *flags) {
	if f.jsonFile != "" {
		if err := export.JSON(report, f.jsonFile); err != nil {
			rlog.Error("json export failed: %v", err)
		}
	}
	if f.textFile != "" {
		if err := export.Text(report, f.textFile); err != nil {
			rlog.Error("text export failed: %v", err)
		}
	}
	if f.htmlFile != "" {
		if err := export.HTML(report, f.htmlFile); err != nil {
			rlog.Error("html export failed: %v", err)
		}
	}
	if f.burpProxy != "" {
		addr := export.NormalizeProxyAddr(f.burpProxy)
		client, err := burpClient(addr)
		if err != nil {
			rlog.Error("burp export: bad proxy address %s: %v", addr, err)
			return
		}
		if err := export.Burp(context.Background(), client, report); err != nil {
			rlog.Error("burp export failed: %v", err)
		}
	}
}

// burpClient builds an *http.Client whose Transport routes every request
// through the Burp proxy at addr, so export.Burp's replayed requests show
// up in Burp's HTTP history.
func burpClient(addr string) (*http.Client, error) {
	proxyURL, err := url.Parse("http://" + addr)
	if err != nil {
		return nil, err
	}
	return &http.Client{
		Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
	}, nil
}
