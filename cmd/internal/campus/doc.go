// Package campus holds the academic records of the campus backend: courses,
// enrollments, attendance, fees and results.
//
// Records reference identities by id only; role checks (a course's faculty
// is a faculty member, an enrollee is a student) belong to the HTTP layer,
// which has the identity store at hand. Stores enforce uniqueness and
// referential integrity.
package campus
