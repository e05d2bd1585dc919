package digest

import "strings"

// FromOID maps a dotted AlgorithmIdentifier OID to an algorithm name.
func FromOID(oid string) (Algorithm, bool) {
	for name, info := range algorithms {
		if info.oid == oid {
			return name, true
		}
	}
	return "", false
}

// FromURI maps an XML-DSig DigestMethod URI to an algorithm name.
// The xmldsig-more#sha256 and xmldsig-more#sha512 aliases are accepted too.
func FromURI(uri string) (Algorithm, bool) {
	switch uri {
	case "http://www.w3.org/2001/04/xmldsig-more#sha256":
		return SHA256, true
	case "http://www.w3.org/2001/04/xmldsig-more#sha512":
		return SHA512, true
	}
	for name, info := range algorithms {
		if info.uri == uri {
			return name, true
		}
	}
	return "", false
}

// FromJOSE maps a JAdES hash algorithm name (e.g. "S256") to an algorithm name.
func FromJOSE(name string) (Algorithm, bool) {
	for alg, info := range algorithms {
		if strings.EqualFold(info.jose, name) {
			return alg, true
		}
	}
	return "", false
}

func OID(alg Algorithm) (string, bool) {
	info, ok := algorithms[alg]
	return info.oid, ok
}

func URI(alg Algorithm) (string, bool) {
	info, ok := algorithms[alg]
	return info.uri, ok
}

func JOSE(alg Algorithm) (string, bool) {
	info, ok := algorithms[alg]
	return info.jose, ok
}
