package key

import (
	"encoding/json"
	"math/big"

	"github.com/CamberLoid/sealedbid/internal/params"
	"github.com/google/uuid"
)

// --- 密钥的 JSON 格式部分 --- //
// 所有大整数均以十进制字符串表示
// SignaturePubkey : {'id', 'p', 'q', 'a', 'y'}
// SignaturePrivkey: SignaturePubkey + {'x'}

type SignaturePubkeyJSON struct {
	Identifier uuid.UUID `json:"id"`
	P          string    `json:"p"`
	Q          string    `json:"q"`
	A          string    `json:"a"`
	Y          string    `json:"y"`
}

type SignaturePrivkeyJSON struct {
	SignaturePubkeyJSON
	X string `json:"x"`
}

type RSAPubkeyJSON struct {
	N string `json:"n"`
	E string `json:"e"`
}

type RSAPrivkeyJSON struct {
	Identifier uuid.UUID `json:"id"`
	RSAPubkeyJSON
	D string `json:"d"`
	P string `json:"p"`
	Q string `json:"q"`
}

type ZKKeyJSON struct {
	Identifier uuid.UUID `json:"id"`
	N          string    `json:"n"`
	V          string    `json:"v"`
	S          string    `json:"s,omitempty"`
}

// EncodeSignatureKeyToJSON 编码签名密钥；withPrivate 为 false 时不含 x
func EncodeSignatureKeyToJSON(k *SignatureKeyChain, withPrivate bool) []byte {
	pub := SignaturePubkeyJSON{
		Identifier: k.Identifier,
		P:          MarshalBigInt(k.Params.P),
		Q:          MarshalBigInt(k.Params.Q),
		A:          MarshalBigInt(k.Params.A),
		Y:          MarshalBigInt(k.Y),
	}
	var jsonData []byte
	if withPrivate {
		jsonData, _ = json.Marshal(SignaturePrivkeyJSON{SignaturePubkeyJSON: pub, X: MarshalBigInt(k.X)})
	} else {
		jsonData, _ = json.Marshal(pub)
	}
	return jsonData
}

// DecodeJSONToSignatureKey 解码签名密钥，缺少 x 时只得到公钥
func DecodeJSONToSignatureKey(jsonData []byte) (k *SignatureKeyChain, err error) {
	var kj SignaturePrivkeyJSON
	if err = json.Unmarshal(jsonData, &kj); err != nil {
		return nil, err
	}

	k = &SignatureKeyChain{Identifier: kj.Identifier, Params: new(params.DomainParams)}
	if k.Params.P, err = UnmarshalBigInt(kj.P, "p"); err != nil {
		return nil, err
	}
	if k.Params.Q, err = UnmarshalBigInt(kj.Q, "q"); err != nil {
		return nil, err
	}
	if k.Params.A, err = UnmarshalBigInt(kj.A, "a"); err != nil {
		return nil, err
	}
	if k.Y, err = UnmarshalBigInt(kj.Y, "y"); err != nil {
		return nil, err
	}
	if kj.X != "" {
		if k.X, err = UnmarshalBigInt(kj.X, "x"); err != nil {
			return nil, err
		}
	}
	return
}

func EncodeRSAPrivateKeyToJSON(k *RSAKeyChain) []byte {
	jsonData, _ := json.Marshal(RSAPrivkeyJSON{
		Identifier:    k.Identifier,
		RSAPubkeyJSON: RSAPubkeyJSON{N: MarshalBigInt(k.N), E: MarshalBigInt(k.E)},
		D:             MarshalBigInt(k.D),
		P:             MarshalBigInt(k.P),
		Q:             MarshalBigInt(k.Q),
	})
	return jsonData
}

func DecodeJSONToRSAPrivateKey(jsonData []byte) (k *RSAKeyChain, err error) {
	var kj RSAPrivkeyJSON
	if err = json.Unmarshal(jsonData, &kj); err != nil {
		return nil, err
	}

	k = &RSAKeyChain{Identifier: kj.Identifier}
	for _, f := range []struct {
		dst  **big.Int
		src  string
		name string
	}{{&k.N, kj.N, "n"}, {&k.E, kj.E, "e"}, {&k.D, kj.D, "d"}, {&k.P, kj.P, "p"}, {&k.Q, kj.Q, "q"}} {
		if *f.dst, err = UnmarshalBigInt(f.src, f.name); err != nil {
			return nil, err
		}
	}
	return
}

func EncodeZKKeyToJSON(k *ZKKeyChain, withPrivate bool) []byte {
	kj := ZKKeyJSON{Identifier: k.Identifier, N: MarshalBigInt(k.N), V: MarshalBigInt(k.V)}
	if withPrivate {
		kj.S = MarshalBigInt(k.S)
	}
	jsonData, _ := json.Marshal(kj)
	return jsonData
}

func DecodeJSONToZKKey(jsonData []byte) (k *ZKKeyChain, err error) {
	var kj ZKKeyJSON
	if err = json.Unmarshal(jsonData, &kj); err != nil {
		return nil, err
	}
	k = &ZKKeyChain{Identifier: kj.Identifier}
	if k.N, err = UnmarshalBigInt(kj.N, "n"); err != nil {
		return nil, err
	}
	if k.V, err = UnmarshalBigInt(kj.V, "v"); err != nil {
		return nil, err
	}
	if kj.S != "" {
		if k.S, err = UnmarshalBigInt(kj.S, "s"); err != nil {
			return nil, err
		}
	}
	return
}
