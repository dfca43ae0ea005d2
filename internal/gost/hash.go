package gost

import (
	"encoding/hex"
	"hash"
)

const (
	// Size 是摘要长度（字节）
	Size = 32
	// BlockSize 是压缩函数处理的消息块长度（字节）
	BlockSize = 32
)

// c3 为标准中的常数 C3（打印顺序）
const c3Hex = "FF00FFFF000000FFFF0000FF00FFFF0000FF00FF00FF00FFFF00FF00FF00FF00"

var c3 = func() (c [32]byte) {
	b, err := hex.DecodeString(c3Hex)
	if err != nil {
		panic(err)
	}
	copy(c[:], b)
	return reverse(&c)
}()

type digest struct {
	h     [32]byte // 中间哈希值，向量表示
	sigma [32]byte // 消息块的和，小端 mod 2^256
	buf   [BlockSize]byte
	nx    int
	len   uint64
}

// New 返回一个新的 GOST R 34.11-94 hash.Hash
func New() hash.Hash {
	d := new(digest)
	d.Reset()
	return d
}

// Sum 一次性计算 msg 的摘要，结果为标准打印字节序
func Sum(msg []byte) (out [Size]byte) {
	d := new(digest)
	d.Write(msg)
	copy(out[:], d.Sum(nil))
	return
}

func (d *digest) Reset() {
	*d = digest{}
}

func (d *digest) Size() int { return Size }

func (d *digest) BlockSize() int { return BlockSize }

func (d *digest) Write(p []byte) (n int, err error) {
	n = len(p)
	d.len += uint64(n)
	for len(p) > 0 {
		c := copy(d.buf[d.nx:], p)
		d.nx += c
		p = p[c:]
		if d.nx == BlockSize {
			d.block(&d.buf)
			d.nx = 0
		}
	}
	return
}

func (d *digest) Sum(in []byte) []byte {
	// 复制一份，调用方可以继续写入
	d0 := *d
	out := d0.finish()
	return append(in, out[:]...)
}

func (d *digest) block(b *[BlockSize]byte) {
	m := reverse(b)
	d.h = compress(&d.h, &m)
	addLE(&d.sigma, b)
}

func (d *digest) finish() [Size]byte {
	if d.nx > 0 {
		for i := d.nx; i < BlockSize; i++ {
			d.buf[i] = 0
		}
		d.block(&d.buf)
	}

	// 消息比特长度，小端 256 位
	var l [32]byte
	bitLen := d.len << 3
	for i := 0; i < 8; i++ {
		l[i] = byte(bitLen >> (8 * i))
	}
	l[8] = byte(d.len >> 61)

	m := reverse(&l)
	d.h = compress(&d.h, &m)
	m = reverse(&d.sigma)
	d.h = compress(&d.h, &m)

	return reverse(&d.h)
}

// --- 压缩函数部分 --- //

// compress 计算 chi(M, H)：密钥生成、四次分组加密、Psi 混合
func compress(h, m *[32]byte) [32]byte {
	keys := keySchedule(reverse(h), reverse(m))

	// H = h4||h3||h2||h1，h_{i+1} 位于 h[24-8i : 32-8i]，以小端形式送入分组密码
	var s [32]byte
	for i := 0; i < 4; i++ {
		var in Block
		for j := 0; j < 8; j++ {
			in[j] = h[31-8*i-j]
		}
		enc := EncryptBlock(in, keys[i])
		copy(s[24-8*i:32-8*i], enc[:])
	}

	t := psi(s, 12)
	xor(&t, m)
	t = psi(t, 1)
	xor(&t, h)
	return psi(t, 61)
}

// keySchedule 由 U = H、V = M（小端形式）生成 K1..K4
func keySchedule(u, v [32]byte) (keys [4]RoundKeys) {
	w := u
	xor(&w, &v)
	keys[0] = permute(&w)

	for i := 1; i < 4; i++ {
		u = transformA(u)
		if i == 2 {
			xor(&u, &c3)
		}
		v = transformA(transformA(v))
		w = u
		xor(&w, &v)
		keys[i] = permute(&w)
	}
	return
}

// permute 是 P 置换：第 i 个轮密钥取 w[i], w[i+8], w[i+16], w[i+24]
func permute(w *[32]byte) (k RoundKeys) {
	for i := 0; i < 8; i++ {
		k[i] = uint32(w[i]) | uint32(w[i+8])<<8 | uint32(w[i+16])<<16 | uint32(w[i+24])<<24
	}
	return
}

// transformA: y1||y2||y3||y4 -> y2||y3||y4||(y1 xor y2)
func transformA(y [32]byte) (out [32]byte) {
	copy(out[0:24], y[8:32])
	for i := 0; i < 8; i++ {
		out[24+i] = y[i] ^ y[8+i]
	}
	return
}

// psi 执行 n 次 Psi 移位，16 位字按大端读取
func psi(x [32]byte, n int) [32]byte {
	for ; n > 0; n-- {
		var t0, t1 byte
		for _, i := range [...]int{15, 14, 13, 12, 3, 0} {
			t0 ^= x[2*i]
			t1 ^= x[2*i+1]
		}
		copy(x[2:], x[:30])
		x[0], x[1] = t0, t1
	}
	return x
}

// --- 辅助函数 --- //

func reverse(b *[32]byte) (out [32]byte) {
	for i := range b {
		out[31-i] = b[i]
	}
	return
}

func xor(dst, src *[32]byte) {
	for i := range dst {
		dst[i] ^= src[i]
	}
}

// addLE: dst += src (mod 2^256)，两者均为小端
func addLE(dst, src *[32]byte) {
	var carry uint16
	for i := range dst {
		carry += uint16(dst[i]) + uint16(src[i])
		dst[i] = byte(carry)
		carry >>= 8
	}
}
