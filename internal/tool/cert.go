package tool

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"time"
)

// GenerateTlsCertificate writes a self-signed ECDSA P-256 key and
// certificate pair, valid for ten years, covering the given hostnames and
// IP addresses.
func GenerateTlsCertificate(
	organization string,
	serverCommonName string,
	serverKeyFilename, serverCertFilename string,
	hostnames []string) error {

	serverKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("unable to generate server key: %w", err)
	}

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return fmt.Errorf("unable to generate serial number: %w", err)
	}

	notBefore := time.Now()
	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{organization},
			CommonName:   serverCommonName,
		},
		NotBefore:             notBefore,
		NotAfter:              notBefore.AddDate(10, 0, 0),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	for _, hostname := range hostnames {
		if ip := net.ParseIP(hostname); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, hostname)
		}
	}

	derBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, &serverKey.PublicKey, serverKey)
	if err != nil {
		return fmt.Errorf("unable to create certificate: %w", err)
	}

	rawKey, err := x509.MarshalECPrivateKey(serverKey)
	if err != nil {
		return fmt.Errorf("unable to serialize server key: %w", err)
	}
	if err := writePemFile(serverKeyFilename, "EC PRIVATE KEY", rawKey); err != nil {
		return err
	}
	return writePemFile(serverCertFilename, "CERTIFICATE", derBytes)
}

func writePemFile(filename string, blockType string, derBytes []byte) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("unable to create %s: %w", filename, err)
	}
	if err := pem.Encode(file, &pem.Block{Type: blockType, Bytes: derBytes}); err != nil {
		file.Close()
		return fmt.Errorf("unable to write %s: %w", filename, err)
	}
	return file.Close()
}
