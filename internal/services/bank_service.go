package services

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
)

// Bank is one payout partner on the clearing rail. Withdrawal requests
// carry the partner code and the payout builder resolves it to the BIC
// used for the creditor agent.
type Bank struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Bic      string `json:"bic"`
	LogoData string `json:"logoData,omitempty"`
}

const (
	logosDir        = "./static/bank-logos"
	fallbackLogoSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 200 200"><rect width="200" height="200" fill="#f0f0f0"/><path d="M100 60c-22.1 0-40 17.9-40 40s17.9 40 40 40 40-17.9 40-40-17.9-40-40-40zm0 65c-13.8 0-25-11.2-25-25s11.2-25 25-25 25 11.2 25 25-11.2 25-25 25z" fill="#999"/><text x="100" y="170" text-anchor="middle" font-family="Arial" font-size="14" fill="#666">BANK</text></svg>`
)

// payoutPartners lists the banks withdrawals can be paid out to. Codes
// are the clearing member ids carried in the pacs.008 creditor agent
// block.
var payoutPartners = []Bank{
	{Code: "FHB", Name: "First Harbor Bank", Bic: "FHBKUS44"},
	{Code: "MRCT", Name: "Mercantile Trust", Bic: "MRCTUS33"},
	{Code: "CSCD", Name: "Cascade Federal", Bic: "CSCDUS66"},
	{Code: "ATLS", Name: "Atlas Savings Bank", Bic: "ATLSUS31"},
	{Code: "NSTR", Name: "Northstar National", Bic: "NSTRUS55"},
	{Code: "PRVG", Name: "Providence Guaranty", Bic: "PRVGUS20"},
	{Code: "SMMT", Name: "Summit Commerce Bank", Bic: "SMMTUS28"},
	{Code: "LKSH", Name: "Lakeshore Mutual", Bic: "LKSHUS60"},
	{Code: "VRDN", Name: "Veridian Bank", Bic: "VRDNUS77"},
	{Code: "BLWD", Name: "Boulevard Trust", Bic: "BLWDUS42"},
}

var partnerLogos = map[string]string{
	"FHB":  "first-harbor.svg",
	"MRCT": "mercantile.svg",
	"CSCD": "cascade.svg",
	"ATLS": "atlas.svg",
	"NSTR": "northstar.svg",
	"SMMT": "summit.svg",
}

type BankService struct {
	byCode map[string]Bank
}

func NewBankService() *BankService {
	byCode := make(map[string]Bank, len(payoutPartners))
	for _, b := range payoutPartners {
		byCode[b.Code] = b
	}
	return &BankService{byCode: byCode}
}

// Resolve looks up a payout partner by clearing code.
func (bs *BankService) Resolve(code string) (Bank, bool) {
	b, ok := bs.byCode[code]
	return b, ok
}

// GetAllBanks serves the payout partner directory with inlined logos so
// the client renders its bank picker in one round trip.
func (bs *BankService) GetAllBanks(w http.ResponseWriter, r *http.Request) {
	banks := make([]Bank, len(payoutPartners))
	copy(banks, payoutPartners)

	for i := range banks {
		banks[i].LogoData = bs.LoadLogo(banks[i].Code)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	json.NewEncoder(w).Encode(banks)
}

// LoadLogo returns the partner logo as a data URI, falling back to a
// generic tile when no artwork is on disk.
func (bs *BankService) LoadLogo(code string) string {
	filename, ok := partnerLogos[code]
	if !ok {
		return "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(fallbackLogoSVG))
	}

	path := filepath.Join(logosDir, filename)
	if data, err := os.ReadFile(path); err == nil {
		return "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString(data)
	}

	return "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(fallbackLogoSVG))
}
