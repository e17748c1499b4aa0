package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"runtime/pprof"

	"github.com/Gideonrgb101/UnderFlaw-sub001/internal/book"
	"github.com/Gideonrgb101/UnderFlaw-sub001/internal/engine"
	"github.com/Gideonrgb101/UnderFlaw-sub001/internal/uci"
)

// Default Polyglot opening book file name.
const defaultBookFile = "book.bin"

var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to file")

func main() {
	flag.Parse()

	profilePath := *cpuprofile
	if profilePath == "" {
		profilePath = os.Getenv("CPUPROFILE")
	}
	if profilePath != "" {
		f, err := os.Create(profilePath)
		if err != nil {
			log.Fatal("could not create CPU profile: ", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal("could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
		log.Printf("CPU profiling enabled, writing to %s", profilePath)
	}

	// Create engine with 64MB hash table.
	// Multi-threaded search enabled (Lazy SMP).
	eng := engine.NewEngine(64)

	if err := autoLoadBook(eng); err != nil {
		log.Printf("info string no opening book loaded: %v", err)
	}

	protocol := uci.New(eng)
	protocol.Run()
}

// autoLoadBook attempts to load a Polyglot opening book from standard
// locations, in order of preference.
func autoLoadBook(eng *engine.Engine) error {
	searchPaths := []string{
		getAppSupportDir(),
		filepath.Join(getHomeDir(), ".underflaw", "book"),
		"./book",
		".",
	}

	for _, dir := range searchPaths {
		path := filepath.Join(dir, defaultBookFile)
		if !fileExists(path) {
			continue
		}
		b, err := book.LoadPolyglot(path)
		if err != nil {
			log.Printf("failed to load book from %s: %v", path, err)
			continue
		}
		eng.SetBook(b)
		log.Printf("opening book loaded from %s", path)
		return nil
	}

	return os.ErrNotExist
}

// getAppSupportDir returns the application support directory for the engine.
func getAppSupportDir() string {
	home := getHomeDir()
	return filepath.Join(home, "Library", "Application Support", "underflaw", "book")
}

// getHomeDir returns the user's home directory.
func getHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

// fileExists checks if a file exists.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
