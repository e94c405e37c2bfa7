package reserves

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// challengeScript is the OP_TRUE script bdk-reserves records as the
// challenge input's UTXO.
var challengeScript = []byte{txscript.OP_TRUE}

type testInput struct {
	tpl      Template
	key      *btcec.PrivateKey
	value    int64
	hashType txscript.SigHashType

	addr     btcutil.Address
	pkScript []byte
	redeem   []byte
	funding  *wire.MsgTx

	// cosigners holds every key of a multisig script, in script order; the
	// first msigRequired of them sign.
	cosigners     []*btcec.PrivateKey
	witnessScript []byte

	// nonWitness attaches the full funding tx to a segwit input as well.
	nonWitness bool
	// tamper flips a bit in the signature after signing.
	tamper bool
}

func (in *testInput) outpoint() wire.OutPoint {
	return wire.OutPoint{Hash: in.funding.TxHash(), Index: 0}
}

type proofBuilder struct {
	t       *testing.T
	net     *chaincfg.Params
	message string
	inputs  []*testInput

	outputValue int64
	outputs     int
	// outputScript overrides the unspendable P2PKH output when set.
	outputScript []byte
}

const msigRequired = 2

func newProofBuilder(t *testing.T, message string) *proofBuilder {
	t.Helper()
	return &proofBuilder{t: t, net: &chaincfg.MainNetParams, message: message, outputs: 1}
}

func mustKey(t *testing.T) *btcec.PrivateKey {
	t.Helper()
	k, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("NewPrivateKey: %v", err)
	}
	return k
}

// add appends a real input of the given template, funded by a synthetic
// transaction paying value to a fresh key.
func (b *proofBuilder) add(tpl Template, value int64) *testInput {
	b.t.Helper()
	return b.addWithKey(tpl, value, mustKey(b.t))
}

func (b *proofBuilder) addWithKey(tpl Template, value int64, key *btcec.PrivateKey) *testInput {
	b.t.Helper()
	in := &testInput{tpl: tpl, key: key, value: value, hashType: txscript.SigHashAll}
	if tpl == TemplateP2TRKeyPath {
		in.hashType = txscript.SigHashDefault
	}
	if tpl == TemplateP2WSHMultisig || tpl == TemplateP2SHP2WSHMultisig {
		in.cosigners = []*btcec.PrivateKey{key, mustKey(b.t), mustKey(b.t)}
	}
	b.lockFor(in)
	in.funding = fundingTx(b.t, in.pkScript, value)
	b.inputs = append(b.inputs, in)
	return in
}

func (b *proofBuilder) lockFor(in *testInput) {
	b.t.Helper()
	tpl, key := in.tpl, in.key
	pub := key.PubKey().SerializeCompressed()
	pkHash := btcutil.Hash160(pub)

	var (
		addr   btcutil.Address
		redeem []byte
		err    error
	)
	switch tpl {
	case TemplateP2PKH:
		addr, err = btcutil.NewAddressPubKeyHash(pkHash, b.net)
	case TemplateP2WPKH:
		addr, err = btcutil.NewAddressWitnessPubKeyHash(pkHash, b.net)
	case TemplateP2SHP2WPKH, TemplateP2SHP2PKH:
		var inner btcutil.Address
		if tpl == TemplateP2SHP2WPKH {
			inner, err = btcutil.NewAddressWitnessPubKeyHash(pkHash, b.net)
		} else {
			inner, err = btcutil.NewAddressPubKeyHash(pkHash, b.net)
		}
		if err != nil {
			b.t.Fatalf("inner address: %v", err)
		}
		redeem, err = txscript.PayToAddrScript(inner)
		if err != nil {
			b.t.Fatalf("redeem script: %v", err)
		}
		addr, err = btcutil.NewAddressScriptHash(redeem, b.net)
	case TemplateP2TRKeyPath:
		outKey := txscript.ComputeTaprootKeyNoScript(key.PubKey())
		addr, err = btcutil.NewAddressTaproot(schnorr.SerializePubKey(outKey), b.net)
	case TemplateP2WSHMultisig, TemplateP2SHP2WSHMultisig:
		in.witnessScript = b.multisigScript(in.cosigners)
		addr, err = btcutil.NewAddressWitnessScriptHash(chainhash.HashB(in.witnessScript), b.net)
		if err == nil && tpl == TemplateP2SHP2WSHMultisig {
			redeem, err = txscript.PayToAddrScript(addr)
			if err != nil {
				b.t.Fatalf("redeem script: %v", err)
			}
			addr, err = btcutil.NewAddressScriptHash(redeem, b.net)
		}
	default:
		b.t.Fatalf("no lock for template %v", tpl)
	}
	if err != nil {
		b.t.Fatalf("address: %v", err)
	}
	pkScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		b.t.Fatalf("PayToAddrScript: %v", err)
	}
	in.addr, in.pkScript, in.redeem = addr, pkScript, redeem
}

func (b *proofBuilder) multisigScript(keys []*btcec.PrivateKey) []byte {
	b.t.Helper()
	pubs := make([]*btcutil.AddressPubKey, 0, len(keys))
	for _, k := range keys {
		pk, err := btcutil.NewAddressPubKey(k.PubKey().SerializeCompressed(), b.net)
		if err != nil {
			b.t.Fatalf("NewAddressPubKey: %v", err)
		}
		pubs = append(pubs, pk)
	}
	script, err := txscript.MultiSigScript(pubs, msigRequired)
	if err != nil {
		b.t.Fatalf("MultiSigScript: %v", err)
	}
	return script
}

func fundingTx(t *testing.T, pkScript []byte, value int64) *wire.MsgTx {
	t.Helper()
	var prev chainhash.Hash
	if _, err := rand.Read(prev[:]); err != nil {
		t.Fatalf("rand: %v", err)
	}
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&prev, 0), nil, nil))
	tx.AddTxOut(wire.NewTxOut(value, pkScript))
	return tx
}

func (b *proofBuilder) addresses() []string {
	out := make([]string, 0, len(b.inputs))
	for _, in := range b.inputs {
		out = append(out, in.addr.EncodeAddress())
	}
	return out
}

func (b *proofBuilder) total() int64 {
	var sum int64
	for _, in := range b.inputs {
		sum += in.value
	}
	return sum
}

// build assembles and signs the proof PSBT.
func (b *proofBuilder) build() *psbt.Packet {
	b.t.Helper()

	challenge := ExpectedChallenge(b.message)
	outpoints := []*wire.OutPoint{&challenge}
	sequences := []uint32{wire.MaxTxInSequenceNum}
	for _, in := range b.inputs {
		op := in.outpoint()
		outpoints = append(outpoints, &op)
		sequences = append(sequences, wire.MaxTxInSequenceNum)
	}
	unspendable, err := txscript.PayToAddrScript(mustUnspendableAddr(b.t, b.net))
	if err != nil {
		b.t.Fatalf("PayToAddrScript: %v", err)
	}
	if b.outputScript != nil {
		unspendable = b.outputScript
	}
	outputs := make([]*wire.TxOut, 0, b.outputs)
	for i := 0; i < b.outputs; i++ {
		outputs = append(outputs, wire.NewTxOut(b.outputValue, unspendable))
	}

	pkt, err := psbt.New(outpoints, outputs, 2, 0, sequences)
	if err != nil {
		b.t.Fatalf("psbt.New: %v", err)
	}

	pkt.Inputs[0].WitnessUtxo = wire.NewTxOut(0, challengeScript)
	// bdk-reserves finalizes the challenge with an empty scriptSig.
	pkt.Inputs[0].FinalScriptSig = []byte{}

	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	fetcher.AddPrevOut(challenge, pkt.Inputs[0].WitnessUtxo)
	for _, in := range b.inputs {
		fetcher.AddPrevOut(in.outpoint(), in.funding.TxOut[0])
	}
	tx := pkt.UnsignedTx
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)

	for i, in := range b.inputs {
		idx := i + 1
		pIn := &pkt.Inputs[idx]
		if in.tpl.Segwit() {
			pIn.WitnessUtxo = in.funding.TxOut[0]
			if in.nonWitness {
				pIn.NonWitnessUtxo = in.funding
			}
		} else {
			pIn.NonWitnessUtxo = in.funding
		}
		b.sign(pIn, in, tx, sigHashes, idx)
	}
	return pkt
}

func (b *proofBuilder) sign(pIn *psbt.PInput, in *testInput, tx *wire.MsgTx, sigHashes *txscript.TxSigHashes, idx int) {
	b.t.Helper()
	pub := in.key.PubKey().SerializeCompressed()

	switch in.tpl {
	case TemplateP2PKH, TemplateP2SHP2PKH:
		subScript := in.pkScript
		if in.tpl == TemplateP2SHP2PKH {
			subScript = in.redeem
		}
		sig, err := txscript.RawTxInSignature(tx, idx, subScript, in.hashType, in.key)
		if err != nil {
			b.t.Fatalf("RawTxInSignature: %v", err)
		}
		if in.tamper {
			sig[len(sig)-2] ^= 0x01
		}
		sb := txscript.NewScriptBuilder().AddData(sig).AddData(pub)
		if in.tpl == TemplateP2SHP2PKH {
			sb.AddData(in.redeem)
		}
		script, err := sb.Script()
		if err != nil {
			b.t.Fatalf("script: %v", err)
		}
		pIn.FinalScriptSig = script

	case TemplateP2WPKH, TemplateP2SHP2WPKH:
		subScript := in.pkScript
		if in.tpl == TemplateP2SHP2WPKH {
			subScript = in.redeem
		}
		wit, err := txscript.WitnessSignature(tx, sigHashes, idx, in.value, subScript, in.hashType, in.key, true)
		if err != nil {
			b.t.Fatalf("WitnessSignature: %v", err)
		}
		if in.tamper {
			wit[0][len(wit[0])-2] ^= 0x01
		}
		pIn.FinalScriptWitness = serializeWitness(b.t, wit)
		if in.tpl == TemplateP2SHP2WPKH {
			script, err := txscript.NewScriptBuilder().AddData(in.redeem).Script()
			if err != nil {
				b.t.Fatalf("script: %v", err)
			}
			pIn.FinalScriptSig = script
		}

	case TemplateP2TRKeyPath:
		wit, err := txscript.TaprootWitnessSignature(tx, sigHashes, idx, in.value, in.pkScript, in.hashType, in.key)
		if err != nil {
			b.t.Fatalf("TaprootWitnessSignature: %v", err)
		}
		if in.tamper {
			wit[0][5] ^= 0x01
		}
		pIn.FinalScriptWitness = serializeWitness(b.t, wit)

	case TemplateP2WSHMultisig, TemplateP2SHP2WSHMultisig:
		wit := wire.TxWitness{nil}
		for _, k := range in.cosigners[:msigRequired] {
			sig, err := txscript.RawTxInWitnessSignature(tx, sigHashes, idx, in.value, in.witnessScript, in.hashType, k)
			if err != nil {
				b.t.Fatalf("RawTxInWitnessSignature: %v", err)
			}
			wit = append(wit, sig)
		}
		if in.tamper {
			wit[1][len(wit[1])-2] ^= 0x01
		}
		wit = append(wit, in.witnessScript)
		pIn.FinalScriptWitness = serializeWitness(b.t, wit)
		if in.tpl == TemplateP2SHP2WSHMultisig {
			script, err := txscript.NewScriptBuilder().AddData(in.redeem).Script()
			if err != nil {
				b.t.Fatalf("script: %v", err)
			}
			pIn.FinalScriptSig = script
		}
	}
}

func (b *proofBuilder) encode() string {
	b.t.Helper()
	return mustEncode(b.t, b.build())
}

func mustEncode(t *testing.T, pkt *psbt.Packet) string {
	t.Helper()
	s, err := EncodeProof(pkt)
	if err != nil {
		t.Fatalf("EncodeProof: %v", err)
	}
	return s
}

func serializeWitness(t *testing.T, wit wire.TxWitness) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := wire.WriteVarInt(&buf, 0, uint64(len(wit))); err != nil {
		t.Fatalf("WriteVarInt: %v", err)
	}
	for _, item := range wit {
		if err := wire.WriteVarBytes(&buf, 0, item); err != nil {
			t.Fatalf("WriteVarBytes: %v", err)
		}
	}
	return buf.Bytes()
}

// mustUnspendableAddr is P2PKH(HASH160(0x00)), the output bdk-reserves uses.
func mustUnspendableAddr(t *testing.T, net *chaincfg.Params) btcutil.Address {
	t.Helper()
	addr, err := btcutil.NewAddressPubKeyHash(btcutil.Hash160([]byte{0x00}), net)
	if err != nil {
		t.Fatalf("NewAddressPubKeyHash: %v", err)
	}
	return addr
}

func mustTxErrCode(t *testing.T, err error) ErrorCode {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error")
	}
	pe, ok := err.(*ProofError)
	if !ok {
		t.Fatalf("expected *ProofError, got %T (%v)", err, err)
	}
	return pe.Code
}

func mustDecode(t *testing.T, b64 string) *ProofTx {
	t.Helper()
	p, err := DecodeProof(b64)
	if err != nil {
		t.Fatalf("DecodeProof: %v", err)
	}
	return p
}

func reencode(t *testing.T, pkt *psbt.Packet) string {
	t.Helper()
	return mustEncode(t, pkt)
}
