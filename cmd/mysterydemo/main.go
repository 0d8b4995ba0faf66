// Command mysterydemo runs one full Data Owner / Verifier round locally: it
// registers a secret, builds a challenge package, submits it to a session
// store, issues a challenge, and verifies an attempted sequence against it.
// There is no network transport here; both parties run in the same process
// and exchange plain Go values, which is enough to exercise every component.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/summitto/mystery-protocol/alphabet"
	"github.com/summitto/mystery-protocol/hectx"
	"github.com/summitto/mystery-protocol/internal/wire"
	"github.com/summitto/mystery-protocol/protocol"
	"github.com/summitto/mystery-protocol/session"
)

func main() {
	secret := flag.String("secret", "Tr0phy!", "the Data Owner's secret string")
	attempt := flag.String("attempt", "", "the sequence the Verifier attempts (defaults to the correct one)")
	segments := flag.Int("segments", 8, "segment count per alphabet mapping")
	prize := flag.Int64("prize", 123456789, "the prize integer locked behind a correct sequence")
	userID := flag.String("user", "demo-user", "user id the challenge package is registered under")
	keyName := flag.String("key", "demo-key", "key name the challenge package is registered under")
	flag.Parse()

	if *attempt == "" {
		*attempt = *secret
	}

	log.Println("provisioning Data Owner and Verifier homomorphic contexts...")
	ownerPriv, _, err := hectx.Provision()
	if err != nil {
		log.Fatalf("provision owner context: %v", err)
	}
	verifierPriv, verifierPub, err := hectx.Provision()
	if err != nil {
		log.Fatalf("provision verifier context: %v", err)
	}
	verifierPrivBlob, err := verifierPriv.Serialize()
	if err != nil {
		log.Fatalf("serialize verifier private context: %v", err)
	}

	log.Printf("generating alphabet mappings for %d characters, %d segments each", len(*secret), *segments)
	mappings, err := alphabet.Generate(len(*secret), *segments)
	if err != nil {
		log.Fatalf("generate mappings: %v", err)
	}

	log.Println("Data Owner: encrypting secret under its own context")
	registered, err := protocol.OwnerRegister(ownerPriv, *secret)
	if err != nil {
		log.Fatalf("owner register: %v", err)
	}

	log.Println("Verifier: committing to a shuffled mapping M'")
	commitPkg, err := protocol.VerifierCommit(mappings)
	if err != nil {
		log.Fatalf("verifier commit: %v", err)
	}

	log.Println("Verifier: transforming the registered ciphertext under the shuffled mapping")
	transformed, err := protocol.VerifierTransform(ownerPriv.PublicContext, registered, commitPkg.Mappings)
	if err != nil {
		log.Fatalf("verifier transform: %v", err)
	}

	log.Println("Data Owner: RS-encoding the prize and encrypting it under its own context")
	prizeCiphertext, err := protocol.GeneratePrize(ownerPriv.PublicContext, big.NewInt(*prize))
	if err != nil {
		log.Fatalf("generate prize: %v", err)
	}

	log.Println("Data Owner: re-encrypting under the Verifier's context and finalizing the challenge package")
	final, err := protocol.OwnerFinalize(ownerPriv, verifierPub, transformed, commitPkg.Salt, commitPkg.Mappings, commitPkg.PwSalt, commitPkg.Commitment, prizeCiphertext)
	if err != nil {
		log.Fatalf("owner finalize: %v", err)
	}

	raw, err := protocol.MarshalFinalPackage(final)
	if err != nil {
		log.Fatalf("marshal final package: %v", err)
	}
	compressed, err := wire.Compress(raw)
	if err != nil {
		log.Fatalf("compress final package: %v", err)
	}
	log.Printf("challenge package: %d bytes raw, %d bytes compressed", len(raw), len(compressed))

	store := session.NewStore(session.DefaultParams())
	defer store.Close()

	fileID, err := store.Submit(compressed, mappings, *userID, *keyName, 0, *segments)
	if err != nil {
		log.Fatalf("submit challenge package: %v", err)
	}
	log.Printf("stored challenge package %s", fileID)

	challenge, err := store.IssueChallenge(*userID, *keyName, 5*time.Minute)
	if err != nil {
		log.Fatalf("issue challenge: %v", err)
	}
	log.Printf("issued session %s for a %d-character secret", challenge.SessionToken, challenge.SecretLength)

	target := protocol.CorrectSequence(mappings, *attempt)
	outcome, err := store.Verify(challenge.SessionToken, target, verifierPrivBlob)
	if err != nil {
		log.Fatalf("verify: %v", err)
	}

	if outcome.IsMatch {
		fmt.Printf("MATCH: prize unlocked = %s\n", outcome.Prize.String())
	} else {
		fmt.Println("NO MATCH: sequence did not decode to the committed mapping")
	}
}
