package services

import (
	"encoding/xml"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/moov-io/iso20022/pkg/common"
	"github.com/moov-io/iso20022/pkg/pacs_v08"
	"github.com/spf13/viper"

	"github.com/playvault/backend/internal/models"
)

// Identifiers the platform presents on outgoing payment messages.
const (
	platformBIC  = "PLAYVLTX"
	platformName = "PlayVault Gaming Ltd"
)

// PayoutService renders approved withdrawals as ISO 20022 messages for
// the banking rail. It is pure message assembly; the workflow decides
// what gets paid.
type PayoutService struct {
	banks *BankService
}

func NewPayoutService(banks *BankService) *PayoutService {
	return &PayoutService{banks: banks}
}

// BuildCreditTransfer creates a pacs.008 FIToFICustomerCreditTransfer
// paying out one approved withdrawal to the player's bank account.
func (p *PayoutService) BuildCreditTransfer(w *models.Withdrawal) (*pacs_v08.FIToFICustomerCreditTransferV08, error) {
	if w.Status != models.WithdrawalApproved {
		return nil, Errorf(CodeInvalidState, "payout requires an approved withdrawal, got %q", w.Status)
	}

	msgId := uuid.New().String()
	creDtTm := time.Now()
	settlementDate := time.Now()
	currency := viper.GetString("platform.currency")

	bankMember := w.BankAccount.BankCode
	if bankMember == "" {
		bankMember = w.BankAccount.BankName
	}
	creditorName := fmt.Sprintf("%s / %s", w.BankAccount.AccountName, w.BankAccount.AccountNumber)

	cdtrFinInstn := pacs_v08.FinancialInstitutionIdentification18{
		ClrSysMmbId: &pacs_v08.ClearingSystemMemberIdentification2{
			MmbId: common.Max35Text(bankMember),
		},
	}
	if partner, ok := p.banks.Resolve(w.BankAccount.BankCode); ok {
		cdtrFinInstn.BICFI = &[]common.BICFIDec2014Identifier{common.BICFIDec2014Identifier(partner.Bic)}[0]
	}

	doc := &pacs_v08.FIToFICustomerCreditTransferV08{
		GrpHdr: pacs_v08.GroupHeader93{
			MsgId:   common.Max35Text(msgId),
			CreDtTm: common.ISODateTime(creDtTm),
			NbOfTxs: "1",
			TtlIntrBkSttlmAmt: &pacs_v08.ActiveCurrencyAndAmount{
				Ccy:   common.ActiveCurrencyCode(currency),
				Value: w.Amount,
			},
			IntrBkSttlmDt: (*common.ISODate)(&settlementDate),
			SttlmInf: pacs_v08.SettlementInstruction7{
				SttlmMtd: "CLRG", // Clearing
			},
		},
		CdtTrfTxInf: []pacs_v08.CreditTransferTransaction39{
			{
				PmtId: pacs_v08.PaymentIdentification7{
					InstrId:    &[]common.Max35Text{common.Max35Text(w.ID.Hex())}[0],
					EndToEndId: common.Max35Text(w.Reference),
					TxId:       &[]common.Max35Text{common.Max35Text(w.ID.Hex())}[0],
				},
				IntrBkSttlmAmt: pacs_v08.ActiveCurrencyAndAmount{
					Ccy:   common.ActiveCurrencyCode(currency),
					Value: w.Amount,
				},
				IntrBkSttlmDt: (*common.ISODate)(&settlementDate),
				ChrgBr:        "SLEV",
				DbtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						BICFI: &[]common.BICFIDec2014Identifier{common.BICFIDec2014Identifier(platformBIC)}[0],
					},
				},
				Dbtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(platformName)}[0],
				},
				CdtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: cdtrFinInstn,
				},
				Cdtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(creditorName)}[0],
				},
			},
		},
	}

	return doc, nil
}

// BuildStatusReport creates a pacs.002 payment status report for a
// withdrawal payout.
func (p *PayoutService) BuildStatusReport(w *models.Withdrawal, status string) (*pacs_v08.FIToFIPaymentStatusReportV08, error) {
	msgId := uuid.New().String()
	creDtTm := time.Now()

	doc := &pacs_v08.FIToFIPaymentStatusReportV08{
		GrpHdr: pacs_v08.GroupHeader53{
			MsgId:   common.Max35Text(msgId),
			CreDtTm: common.ISODateTime(creDtTm),
		},
		TxInfAndSts: []pacs_v08.PaymentTransaction80{
			{
				OrgnlInstrId:    &[]common.Max35Text{common.Max35Text(w.ID.Hex())}[0],
				OrgnlEndToEndId: &[]common.Max35Text{common.Max35Text(w.Reference)}[0],
				OrgnlTxId:       &[]common.Max35Text{common.Max35Text(w.ID.Hex())}[0],
				TxSts:           &[]pacs_v08.ExternalPaymentTransactionStatus1Code{pacs_v08.ExternalPaymentTransactionStatus1Code(status)}[0], // ACCP, RJCT, ACSC, etc.
			},
		},
	}

	return doc, nil
}

// ToXML renders an ISO 20022 document as an XML string.
func (p *PayoutService) ToXML(doc interface{}) (string, error) {
	xmlData, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal XML: %w", err)
	}
	return xml.Header + string(xmlData), nil
}
