// 包 gost 实现 GOST 28147-89 分组密码（测试 S 盒）以及基于它的 GOST R 34.11-94 哈希
package gost

import (
	"encoding/binary"
	"math/bits"
)

// Block 是一个 64 位分组，按两个小端 32 位半块 N1‖N2 排列
type Block [8]byte

// RoundKeys 是运行顺序的 8 个轮密钥 k1..k8
type RoundKeys [8]uint32

// id-GostR3411-94-TestParamSet，第 i 行作用于第 i 个半字节（S1 在最低位）
var sbox = [8][16]byte{
	{4, 10, 9, 2, 13, 8, 0, 14, 6, 11, 1, 12, 7, 15, 5, 3},
	{14, 11, 4, 12, 6, 13, 15, 10, 2, 3, 8, 1, 0, 7, 5, 9},
	{5, 8, 1, 13, 10, 3, 4, 2, 14, 15, 12, 7, 6, 0, 9, 11},
	{7, 13, 10, 1, 0, 8, 9, 15, 14, 4, 6, 12, 11, 2, 5, 3},
	{6, 12, 7, 1, 5, 15, 13, 8, 4, 10, 9, 14, 0, 3, 11, 2},
	{4, 11, 10, 0, 7, 2, 1, 13, 3, 6, 8, 5, 9, 12, 15, 14},
	{13, 11, 4, 1, 3, 15, 5, 9, 0, 10, 14, 7, 6, 8, 2, 12},
	{1, 15, 13, 0, 5, 7, 10, 4, 9, 2, 3, 14, 6, 11, 8, 12},
}

// round 是轮函数 F(x, k) = rotl11(S(x + k mod 2^32))
func round(x, k uint32) uint32 {
	u := x + k
	var y uint32
	for i := 0; i < 8; i++ {
		y |= uint32(sbox[i][(u>>(4*i))&0xF]) << (4 * i)
	}
	return bits.RotateLeft32(y, 11)
}

// EncryptBlock 用 32 轮 Feistel 网络加密一个分组
// 1..24 轮依次使用 k1..k8 三遍，25..32 轮使用 k8..k1，最后一轮不交换半块。
// 返回值按 MSB-first 排列，即哈希压缩函数直接使用的字节序。
func EncryptBlock(in Block, k RoundKeys) (out Block) {
	n1 := binary.LittleEndian.Uint32(in[0:4])
	n2 := binary.LittleEndian.Uint32(in[4:8])

	for r := 0; r < 24; r++ {
		n1, n2 = n2^round(n1, k[r%8]), n1
	}
	for r := 7; r > 0; r-- {
		n1, n2 = n2^round(n1, k[r]), n1
	}
	n2 ^= round(n1, k[0])

	binary.BigEndian.PutUint32(out[0:4], n2)
	binary.BigEndian.PutUint32(out[4:8], n1)
	return
}
