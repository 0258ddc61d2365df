package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"proaluno-library/internal/adapters/persistence/models"
	"proaluno-library/internal/config"
)

// MailerService delivers borrower emails through the HTTP mail relay.
// Delivery is fire-and-forget: circulation operations never wait on
// the relay and never fail because of it.
type MailerService struct {
	relayURL string
	token    string
	from     string
	enabled  bool
	client   *http.Client
}

// NewMailerService creates a new mailer service
func NewMailerService(cfg *config.Config) *MailerService {
	return &MailerService{
		relayURL: cfg.Mail.RelayURL,
		token:    cfg.Mail.Token,
		from:     cfg.Mail.From,
		enabled:  cfg.Mail.RelayURL != "",
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// IsEnabled checks if mail delivery is enabled
func (s *MailerService) IsEnabled() bool {
	return s.enabled
}

type mailPayload struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// send posts one email to the relay in the background
func (s *MailerService) send(to, subject, body string) {
	if !s.enabled || to == "" {
		return
	}

	go func() {
		payload, err := json.Marshal(mailPayload{
			From:    s.from,
			To:      to,
			Subject: subject,
			Body:    body,
		})
		if err != nil {
			log.Printf("⚠️ Failed to build mail payload: %v", err)
			return
		}

		req, err := http.NewRequest("POST", s.relayURL, bytes.NewBuffer(payload))
		if err != nil {
			log.Printf("⚠️ Failed to build mail request: %v", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		if s.token != "" {
			req.Header.Set("Authorization", "Bearer "+s.token)
		}

		resp, err := s.client.Do(req)
		if err != nil {
			log.Printf("⚠️ Mail relay unreachable: %v", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			log.Printf("⚠️ Mail relay rejected message (%d): %s", resp.StatusCode, subject)
		}
	}()
}

// SendLoanConfirmation confirms a new loan
func (s *MailerService) SendLoanConfirmation(user *models.User, loan *models.Loan) {
	s.send(user.Email,
		"Empréstimo registrado",
		fmt.Sprintf("Olá %s,\n\nO empréstimo do livro \"%s\" foi registrado.\nData de devolução: %s.\n\nBiblioteca ProAluno",
			user.Name, loan.Book.Title, loan.DueDate.Format("02/01/2006")))
}

// SendReturnConfirmation confirms a return
func (s *MailerService) SendReturnConfirmation(user *models.User, loan *models.Loan) {
	s.send(user.Email,
		"Devolução registrada",
		fmt.Sprintf("Olá %s,\n\nA devolução do livro \"%s\" foi registrada. Obrigado!\n\nBiblioteca ProAluno",
			user.Name, loan.Book.Title))
}

// SendRenewalConfirmation confirms a renewal
func (s *MailerService) SendRenewalConfirmation(user *models.User, loan *models.Loan) {
	s.send(user.Email,
		"Renovação registrada",
		fmt.Sprintf("Olá %s,\n\nO empréstimo do livro \"%s\" foi renovado.\nNova data de devolução: %s.\n\nBiblioteca ProAluno",
			user.Name, loan.Book.Title, loan.DueDate.Format("02/01/2006")))
}

// SendExtensionConfirmation confirms the one-time extension
func (s *MailerService) SendExtensionConfirmation(user *models.User, loan *models.Loan) {
	s.send(user.Email,
		"Extensão de empréstimo concedida",
		fmt.Sprintf("Olá %s,\n\nA extensão do empréstimo do livro \"%s\" foi concedida.\nNova data de devolução: %s.\nAtenção: a data pode ser antecipada se outra pessoa solicitar o livro.\n\nBiblioteca ProAluno",
			user.Name, loan.Book.Title, loan.DueDate.Format("02/01/2006")))
}

// SendOverdueAlert alerts the borrower that a loan became overdue
func (s *MailerService) SendOverdueAlert(user *models.User, loan *models.Loan) {
	s.send(user.Email,
		"Livro em atraso",
		fmt.Sprintf("Olá %s,\n\nO livro \"%s\" deveria ter sido devolvido em %s.\nPor favor devolva-o à biblioteca o quanto antes.\n\nBiblioteca ProAluno",
			user.Name, loan.Book.Title, loan.DueDate.Format("02/01/2006")))
}

// SendOverdueReminder repeats the overdue alert on the policy cadence
func (s *MailerService) SendOverdueReminder(user *models.User, loan *models.Loan) {
	s.send(user.Email,
		"Lembrete: livro em atraso",
		fmt.Sprintf("Olá %s,\n\nLembrete: o livro \"%s\" continua em atraso desde %s.\n\nBiblioteca ProAluno",
			user.Name, loan.Book.Title, loan.DueDate.Format("02/01/2006")))
}

// SendNudge tells the borrower someone is waiting for the book
func (s *MailerService) SendNudge(user *models.User, loan *models.Loan, dueDateChanged bool) {
	if dueDateChanged {
		s.send(user.Email,
			"Livro solicitado por outra pessoa",
			fmt.Sprintf("Olá %s,\n\nOutra pessoa solicitou o livro \"%s\".\nComo o empréstimo está em período de extensão, a data de devolução foi antecipada para %s.\n\nBiblioteca ProAluno",
				user.Name, loan.Book.Title, loan.DueDate.Format("02/01/2006")))
		return
	}
	s.send(user.Email,
		"Livro solicitado por outra pessoa",
		fmt.Sprintf("Olá %s,\n\nOutra pessoa solicitou o livro \"%s\".\nSe já tiver terminado, considere devolvê-lo antes de %s.\n\nBiblioteca ProAluno",
			user.Name, loan.Book.Title, loan.DueDate.Format("02/01/2006")))
}
