// Command initvault provisions the key material for a vault directory
// without touching the vault file.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/awnumar/memguard"
	"github.com/sirupsen/logrus"

	"github.com/Hussein-Mazeh/LicenseKeyManager/internal/config"
	"github.com/Hussein-Mazeh/LicenseKeyManager/internal/keys"
)

func main() {
	memguard.CatchInterrupt()
	defer memguard.Purge()

	var cfgFile string
	flag.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.keyman.yaml)")
	flag.Parse()

	v := config.New()
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}

	log, err := config.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		logrus.Fatalf("configure logging: %v", err)
	}

	if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
		log.Fatalf("create vault directory: %v", err)
	}

	mgr := keys.NewManager(keys.Paths{Dir: cfg.Dir},
		keys.WithKDFParams(cfg.KDFParams()),
		keys.WithRSABits(cfg.RSABits),
		keys.WithLogger(logrus.NewEntry(log)),
	)
	if _, err := mgr.Material(); err != nil {
		log.Fatalf("initialize key material: %v", err)
	}

	created := mgr.Created()
	if len(created) == 0 {
		fmt.Printf("key material already present in %s\n", cfg.Dir)
		return
	}
	for _, path := range created {
		fmt.Printf("created %s\n", filepath.Base(path))
	}
}
