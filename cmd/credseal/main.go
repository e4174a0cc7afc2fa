// Command credseal seals a decision-service credential under a passphrase,
// producing the blob miraged expects in its configuration. It can also
// unseal a blob to verify it.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/TFMV/mirage/pkg/mirage/crypto"
)

func main() {
	// Parse command line arguments
	credentialFile := flag.String("credential-file", "", "File containing the plaintext credential (stdin if empty)")
	passphraseEnv := flag.String("passphrase-env", "MIRAGE_PASSPHRASE", "Environment variable holding the passphrase")
	unseal := flag.Bool("unseal", false, "Unseal a blob instead of sealing a credential")
	verbose := flag.Bool("verbose", false, "Enable verbose logging")

	flag.Parse()

	// Set up logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	passphrase := os.Getenv(*passphraseEnv)
	if passphrase == "" {
		log.Fatal().Str("env", *passphraseEnv).Msg("Passphrase environment variable is not set")
	}

	input, err := readInput(*credentialFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read input")
	}

	if *unseal {
		credential, err := crypto.Open(input, passphrase)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to unseal credential")
		}
		// The plaintext goes to stdout only, never the log
		fmt.Println(credential)
		log.Info().Msg("Credential unsealed successfully")
		return
	}

	sealed, err := crypto.Seal(input, passphrase)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to seal credential")
	}

	fmt.Println(sealed)
	log.Info().Msg("Credential sealed successfully")
}

// readInput reads the credential or blob from a file, or stdin when no file
// is given.
func readInput(path string) (string, error) {
	var raw []byte
	var err error
	if path != "" {
		raw, err = os.ReadFile(path)
	} else {
		raw, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}
