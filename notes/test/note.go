package test

import (
	"github.com/tidepool-org/cardiac/notes"
	"github.com/tidepool-org/cardiac/test"
)

func RandomNote(patientId string, clinicianId string) notes.Note {
	return notes.Note{
		PatientId:   patientId,
		ClinicianId: clinicianId,
		NoteType:    notes.Type(test.Faker.RandomStringElement([]string{"progress", "assessment", "plan", "telemedicine"})),
		Subjective:  test.Faker.Lorem().Sentence(8),
		Objective:   test.Faker.Lorem().Sentence(8),
		Assessment:  test.Faker.Lorem().Sentence(6),
		Plan:        test.Faker.Lorem().Sentence(6),
	}
}
