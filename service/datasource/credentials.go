/*
 * @module service/datasource/credentials
 * @description 数据源口令加密存储，密钥来自 CREDENTIAL_KEY 环境变量
 * @architecture 数据访问层 - 凭据管理
 * @stateFlow 注册数据源时加密入库 -> 建立连接时解密
 * @rules 密文为 base64(nonce || ciphertext)，密钥经 SHA-256 规整为 32 字节
 * @dependencies golang.org/x/crypto/chacha20poly1305
 * @refs service.go
 */

package datasource

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"os"

	"golang.org/x/crypto/chacha20poly1305"
)

const defaultCredentialKey = "geodata-quality-service"

// credentialKey 从环境变量派生加密密钥
func credentialKey() []byte {
	key := os.Getenv("CREDENTIAL_KEY")
	if key == "" {
		key = defaultCredentialKey
	}
	sum := sha256.Sum256([]byte(key))
	return sum[:]
}

// EncryptPassword 加密数据源口令
func EncryptPassword(plain string) (string, error) {
	aead, err := chacha20poly1305.NewX(credentialKey())
	if err != nil {
		return "", fmt.Errorf("初始化加密器失败: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("生成随机数失败: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plain), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptPassword 解密数据源口令
func DecryptPassword(cipher string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(cipher)
	if err != nil {
		return "", fmt.Errorf("密文格式错误: %w", err)
	}
	aead, err := chacha20poly1305.NewX(credentialKey())
	if err != nil {
		return "", fmt.Errorf("初始化解密器失败: %w", err)
	}
	if len(raw) < aead.NonceSize() {
		return "", fmt.Errorf("密文长度不足")
	}
	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("解密失败: %w", err)
	}
	return string(plain), nil
}
