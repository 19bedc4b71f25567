package export

import (
	"fmt"

	"github.com/bcgov/wildsync/mailer"
)

func downloadMessage(from, to, link, dataName string) mailer.Message {
	text := fmt.Sprintf("Hello,\n\n"+
		"The data and photos for Badger Culvert Passability Assessment %s can be downloaded by clicking the link below.\n\n"+
		"%s\n\n"+
		"Within the downloaded zip file, you will find:\n\n"+
		"- The Photos folder that contains photos taken for each assessment.\n"+
		"- The Data folder that contains CSV, KML, and GeoJSON documents showing all inputted data for your project.\n\n"+
		"If you have any questions, please contact Karina Lamy by email",
		dataName, link)

	html := fmt.Sprintf("<html><body>"+
		"<p>Hello,</p>"+
		"<p>The data and photos for Badger Culvert Passability Assessment %s can be downloaded by clicking the link below.</p>"+
		"<p>%s</p>"+
		"<p>Within the downloaded zip file, you will find:</p>"+
		"<ul>"+
		"<li><b>The Photos folder</b> that contains photos taken for each assessment.</li>"+
		"<li><b>The Data folder</b> that contains CSV, KML, and GeoJSON documents showing all inputted data for your project.</li>"+
		"</ul>"+
		"<p>If you have any questions, please contact <b>Karina Lamy</b> by email</p>"+
		"</body></html>",
		dataName, link)

	return mailer.Message{
		From:     from,
		To:       []string{to},
		Subject:  fmt.Sprintf("Culvert Assessment: Data Location for %s", dataName),
		Body:     text,
		HTMLBody: html,
	}
}

func requestErrorMessage(from, to, dataName, errorMessage string) mailer.Message {
	text := fmt.Sprintf("Hello,\n\n"+
		"There has been an error processing the survey data for %s. The error is:\n\n"+
		"%s\n\n"+
		"Please confirm you have entered valid initials and date range.",
		dataName, errorMessage)

	html := fmt.Sprintf("<html><body>"+
		"<p>Hello,</p>"+
		"<p>There has been an error processing the survey data for %s. The error is:</p>"+
		"<p>%s</p>"+
		"<p>Please confirm you have entered valid initials and date range.</p>"+
		"</body></html>",
		dataName, errorMessage)

	return mailer.Message{
		From:     from,
		To:       []string{to},
		Subject:  fmt.Sprintf("Culvert Assessment: Error in Data Request %s", dataName),
		Body:     text,
		HTMLBody: html,
	}
}

func adminErrorMessage(from, admin, dataName, errorMessage string) mailer.Message {
	text := fmt.Sprintf("Hello,\n\n"+
		"There has been an error processing the survey data for %s. The error is:\n\n"+
		"%s\n\n"+
		"Please notify the contractor associated with the project.",
		dataName, errorMessage)

	html := fmt.Sprintf("<html><body>"+
		"<p>Hello,</p>"+
		"<p>There has been an error processing the survey data for %s. The error is:</p>"+
		"<p>%s</p>"+
		"<p>Please notify the contractor associated with the project.</p>"+
		"</body></html>",
		dataName, errorMessage)

	return mailer.Message{
		From:     from,
		To:       []string{admin},
		Subject:  fmt.Sprintf("Culvert Assessment: Error in Project %s", dataName),
		Body:     text,
		HTMLBody: html,
	}
}
