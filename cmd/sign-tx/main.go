// Command sign-tx builds and signs escrow transactions for submission
// to a node's POST /api/v1/txs endpoint. With no -key it generates a
// fresh keypair and prints it.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openrails/fiatlock/pkg/app/core/transaction"
	"github.com/openrails/fiatlock/pkg/crypto"
)

func main() {
	var (
		keyHex   = flag.String("key", "", "hex private key (generates a new one if empty)")
		txType   = flag.String("type", "create", "transaction type: create | lock | close | settle")
		nonce    = flag.Uint64("nonce", 1, "account nonce, strictly increasing")
		orderID  = flag.Uint64("order", 1, "order id")
		validFor = flag.Uint64("valid-until", 0, "create: last height the order may be locked at")
		tokenID  = flag.Uint64("token", 0, "create: token id")
		amount   = flag.Uint64("amount", 0, "create: escrowed token amount")
		fiat     = flag.Uint64("fiat", 0, "create/settle: fiat amount in minor units")
		receiver = flag.String("receiver", "", "create: maker payment identity (hashed locally)")
		sender   = flag.String("sender", "", "lock: taker payment identity (hashed locally)")
		lockHex  = flag.String("lock", "", "settle: lock commitment hex from the locked order")
	)
	flag.Parse()

	var signer *crypto.Signer
	var err error
	if *keyHex == "" {
		signer, err = crypto.GenerateKey()
		if err != nil {
			fatalf("generate key: %v", err)
		}
		fmt.Printf("Generated key: %s (keep secret)\n", signer.PrivateKeyHex())
	} else {
		signer, err = crypto.FromPrivateKeyHex(*keyHex)
		if err != nil {
			fatalf("load key: %v", err)
		}
	}
	fmt.Printf("Address: %s\n\n", signer.Address().Hex())

	tx := &transaction.SignedTransaction{Nonce: *nonce}

	switch transaction.TxType(*txType) {
	case transaction.TxTypeCreate:
		if *receiver == "" {
			fatalf("create requires -receiver")
		}
		tx.Type = transaction.TxTypeCreate
		tx.Create = &transaction.CreatePayload{
			OrderID:     *orderID,
			ValidUntil:  *validFor,
			TokenID:     *tokenID,
			AmountToken: *amount,
			AmountFiat:  *fiat,
			Receiver:    crypto.HashIdentity(*receiver).Hex(),
		}
	case transaction.TxTypeLock:
		if *sender == "" {
			fatalf("lock requires -sender")
		}
		tx.Type = transaction.TxTypeLock
		tx.Lock = &transaction.LockPayload{
			OrderID:      *orderID,
			SenderIDHash: crypto.HashIdentity(*sender).Hex(),
		}
	case transaction.TxTypeClose:
		tx.Type = transaction.TxTypeClose
		tx.Close = &transaction.ClosePayload{OrderID: *orderID}
	case transaction.TxTypeSettle:
		if *receiver == "" || *lockHex == "" {
			fatalf("settle requires -receiver and -lock")
		}
		tx.Type = transaction.TxTypeSettle
		reference := crypto.DeriveSettlementReference(
			*fiat,
			crypto.HashIdentity(*receiver),
			common.HexToHash(*lockHex),
		)
		tx.Settle = &transaction.SettlePayload{
			OrderID:   *orderID,
			Reference: reference.Hex(),
			Valid:     true,
		}
	default:
		fatalf("unknown type %q", *txType)
	}

	if err := transaction.Sign(tx, signer); err != nil {
		fatalf("sign: %v", err)
	}

	caller, err := transaction.VerifySignedTransaction(tx)
	if err != nil {
		fatalf("self-verification failed: %v", err)
	}
	if caller.Address != signer.Address() {
		fatalf("recovered %s, expected %s", caller.Address.Hex(), signer.Address().Hex())
	}

	out, err := json.MarshalIndent(tx, "", "  ")
	if err != nil {
		fatalf("marshal: %v", err)
	}
	fmt.Println(string(out))
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
