package registration

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/store-rating-api/internal/domain"
)

const (
	subjectRegistration  = "Your OTP Code for Registration"
	subjectPasswordReset = "Password Reset OTP Code"
)

var otpTemplates = map[domain.OTPPurpose]*template.Template{
	domain.PurposeRegistration: template.Must(template.New("registration").Parse(`
<div style="font-family: Arial, sans-serif; color: #fff; background-color: #111; padding: 20px;">
  <h2 style="color: #fff; border-bottom: 1px solid #222; padding-bottom: 10px;">Registration OTP</h2>
  <p style="color: #999;">Thank you for registering! Use the following OTP code to verify your email:</p>
  <p style="font-size: 1.2rem; color: #fff;"><strong>{{.Code}}</strong></p>
  <p style="color: #999;">This code will expire in {{.Validity}}.</p>
</div>`)),
	domain.PurposePasswordReset: template.Must(template.New("password_reset").Parse(`
<div style="font-family: Arial, sans-serif; color: #fff; background-color: #111; padding: 20px;">
  <h2 style="color: #fff; border-bottom: 1px solid #222; padding-bottom: 10px;">Password Reset Request</h2>
  <p style="color: #999;">You have requested to reset your password. Use the following OTP code to proceed:</p>
  <p style="font-size: 1.2rem; color: #fff;"><strong>{{.Code}}</strong></p>
  <p style="color: #999;">This code will expire in {{.Validity}}.</p>
  <p style="color: #999;">If you didn't request a password reset, please ignore this email.</p>
</div>`)),
}

// renderOTPEmail returns the subject and HTML body announcing code for purpose.
func renderOTPEmail(purpose domain.OTPPurpose, code string, validity time.Duration) (string, string, error) {
	tmpl, ok := otpTemplates[purpose]
	if !ok {
		return "", "", fmt.Errorf("no email template for purpose %q", purpose)
	}
	subject := subjectRegistration
	if purpose == domain.PurposePasswordReset {
		subject = subjectPasswordReset
	}
	var buf bytes.Buffer
	err := tmpl.Execute(&buf, struct {
		Code     string
		Validity string
	}{Code: code, Validity: humanize(validity)})
	if err != nil {
		return "", "", err
	}
	return subject, buf.String(), nil
}

func humanize(d time.Duration) string {
	if d >= time.Minute && d%time.Minute == 0 {
		n := int(d / time.Minute)
		if n == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", n)
	}
	return d.String()
}
